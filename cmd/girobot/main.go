package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Trip2025/girobot/internal/compose"
	"github.com/Trip2025/girobot/internal/config"
	"github.com/Trip2025/girobot/internal/database"
	"github.com/Trip2025/girobot/internal/pipeline"
	"github.com/Trip2025/girobot/internal/race"
	"github.com/Trip2025/girobot/internal/schedule"
	"github.com/Trip2025/girobot/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "girobot",
	Short:   "Daily stage results for a cycling grand tour",
	Long:    "GiroBot reads the latest stage results, falls back to known data when they are unavailable, and sends a daily summary.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging("INFO")

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		setupLogging(cfg.Logging.Level)
		slog.Debug("config loaded", "path", path)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(calendarCmd)
}

// setupLogging installs a text handler on stderr. --verbose always wins.
func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("girobot", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/girobot/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to set the race calendar and delivery channel.")
		fmt.Println("WhatsApp delivery reads TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, TWILIO_FROM_NUMBER and TO_NUMBER.")
		return nil
	},
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(filepath.Join(dataDir, database.FileName))
}

// --- serve command ---

var (
	servePort int
	sendNow   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daily scheduler and the web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(cfg.Delivery.Channel != config.ChannelLog); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var a *app
		a, err = buildApp(ctx, appOptions{
			db: db,
			job: func(ctx context.Context) {
				printResult(a.cycle.Run(ctx, pipeline.TriggerScheduled))
			},
		})
		if err != nil {
			return err
		}

		srv, err := server.New(server.Deps{
			Runner:   a.cycle,
			Log:      db,
			Next:     func() time.Time { return a.scheduler.Next(time.Now()) },
			RaceName: cfg.Race.Name,
		})
		if err != nil {
			return err
		}

		if sendNow {
			fmt.Println("Sending an update now...")
			printResult(a.cycle.Run(ctx, pipeline.TriggerCLI))
		}

		a.scheduler.Start()
		defer func() { <-a.scheduler.Stop().Done() }()

		addr := cfg.Addr()
		if servePort > 0 {
			addr = net.JoinHostPort(cfg.Server.Host, strconv.Itoa(servePort))
		}
		fmt.Printf("Starting server at http://%s\n", addr)
		fmt.Printf("Next update: %s (%s)\n",
			a.scheduler.Next(time.Now()).Format("Mon 02 Jan 15:04 MST"), a.scheduler.Location())
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, addr, srv.Handler())
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides server.port)")
	serveCmd.Flags().BoolVar(&sendNow, "send-now", false, "Deliver one update at startup before waiting for the schedule")
}

// --- send command ---

var dryRun bool

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Assemble and deliver today's update now",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(!dryRun && cfg.Delivery.Channel != config.ChannelLog); err != nil {
			return err
		}

		opts := appOptions{}
		if dryRun {
			opts.out = os.Stdout
		} else {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			opts.db = db
		}

		a, err := buildApp(cmd.Context(), opts)
		if err != nil {
			return err
		}

		result := a.cycle.Run(cmd.Context(), pipeline.TriggerCLI)
		printResult(result)
		if result.Err != nil {
			return fmt.Errorf("delivery failed: %w", result.Err)
		}
		return nil
	},
}

func init() {
	sendCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the message instead of delivering it")
}

func printResult(result *pipeline.Result) {
	for i, step := range result.Steps {
		fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
		if step.Err != nil {
			fmt.Printf("  Error: %v\n", step.Err)
		} else {
			fmt.Printf("  %s\n", step.Summary)
		}
	}
}

// --- preview command ---

var previewDate string

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Print the message that would be sent, without delivering it",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context(), appOptions{out: os.Stdout})
		if err != nil {
			return err
		}

		var asm pipeline.Assembly
		if previewDate == "" {
			asm = a.cycle.Assembler().Assemble(cmd.Context())
		} else {
			day, err := time.ParseInLocation(race.DateLayout, previewDate, a.loc)
			if err != nil {
				return fmt.Errorf("invalid --date %q: %w", previewDate, err)
			}
			asm = a.cycle.Assembler().AssembleFor(cmd.Context(), day)
		}

		if asm.Source == pipeline.SourceFallback {
			fmt.Fprintf(os.Stderr, "Using fallback data: %v\n\n", asm.Cause)
		}
		fmt.Println(a.cycle.Composer().Compose(asm.Record))
		return nil
	},
}

func init() {
	previewCmd.Flags().StringVar(&previewDate, "date", "", "Preview for this date (YYYY-MM-DD) in the race time zone")
}

// --- status command ---

var (
	statusLimit int
	statusDate  string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show delivery statistics and recent deliveries",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return err
		}

		fmt.Println("GiroBot Status")
		fmt.Println("==============")
		fmt.Printf("  Deliveries:     %d\n", stats.Deliveries)
		fmt.Printf("  Delivered:      %d\n", stats.Delivered)
		fmt.Printf("  Failed:         %d\n", stats.Failed)
		fmt.Printf("  Used fallback:  %d\n", stats.Fallbacks)
		if stats.LastDelivered != nil {
			fmt.Printf("  Last delivered: %s\n", *stats.LastDelivered)
		}

		if next, err := nextUpdate(); err == nil {
			fmt.Printf("  Next update:    %s\n", next)
		}
		fmt.Printf("  Database:       %s\n", db.Path())

		deliveries, err := listDeliveries(db, statusDate, statusLimit)
		if err != nil {
			return err
		}
		if len(deliveries) == 0 {
			return nil
		}

		fmt.Println()
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Date", "Stage", "Source", "Channel", "Trigger", "Delivered", "Error"})
		for _, d := range deliveries {
			delivered := "yes"
			if !d.Delivered {
				delivered = "no"
			}
			t.AppendRow(table.Row{d.RunDate, d.Stage, d.Source, d.Channel, d.Trigger, delivered, deref(d.Error)})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 10, "Number of recent deliveries to show")
	statusCmd.Flags().StringVar(&statusDate, "date", "", "Show every delivery of one run date (YYYY-MM-DD)")
}

// listDeliveries returns the deliveries of date, or the newest limit
// deliveries when date is empty.
func listDeliveries(db *database.DB, date string, limit int) ([]database.Delivery, error) {
	if date == "" {
		return db.GetRecentDeliveries(limit)
	}
	if _, err := time.Parse(race.DateLayout, date); err != nil {
		return nil, fmt.Errorf("invalid --date %q: %w", date, err)
	}
	return db.GetDeliveriesForDate(date)
}

// nextUpdate formats the next scheduled delivery in the race time zone.
func nextUpdate() (string, error) {
	loc, err := cfg.Location()
	if err != nil {
		return "", err
	}
	spec := cfg.Schedule.Cron
	if spec == "" {
		if spec, err = schedule.DailySpec(cfg.Schedule.Time); err != nil {
			return "", err
		}
	}
	sched, err := schedule.New(context.Background(), spec, loc, func(context.Context) {})
	if err != nil {
		return "", err
	}
	next := sched.Next(time.Now())
	return fmt.Sprintf("%s (%s)", next.Format("Mon 02 Jan 15:04 MST"), compose.NextUpdateNotice(next)), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// --- calendar command ---

var calendarDate string

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Show the race calendar and the stage reported today",
	RunE: func(cmd *cobra.Command, args []string) error {
		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		cal, err := buildCalendar()
		if err != nil {
			return err
		}

		today := time.Now().In(loc)
		if calendarDate != "" {
			if today, err = time.ParseInLocation(race.DateLayout, calendarDate, loc); err != nil {
				return fmt.Errorf("invalid --date %q: %w", calendarDate, err)
			}
		}
		current := cal.Resolve(today)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Date", "Day", "Stage", ""})
		for _, e := range cal.Entries() {
			d, _ := time.Parse(race.DateLayout, e.Date)
			mark := ""
			if e.Stage == current {
				mark = "<- reported"
			}
			t.AppendRow(table.Row{e.Date, d.Format("Mon"), e.Stage, mark})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()

		fmt.Printf("\n%s\n", preRaceNote(cal))
		fmt.Printf("%s: stage %d is reported", today.Format(race.DateLayout), current)
		if _, racing := cal.StageOn(today); !racing {
			fmt.Print(" (no racing today)")
		}
		fmt.Println()
		return nil
	},
}

// preRaceNote describes what is reported before the first race day.
func preRaceNote(cal *race.Calendar) string {
	entries := cal.Entries()
	return fmt.Sprintf("Before %s: stage %d is reported", entries[0].Date, cal.PreRaceStage())
}

func init() {
	calendarCmd.Flags().StringVar(&calendarDate, "date", "", "Resolve the stage for this date (YYYY-MM-DD) instead of today")
}
