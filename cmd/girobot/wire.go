package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Trip2025/girobot/internal/compose"
	"github.com/Trip2025/girobot/internal/config"
	"github.com/Trip2025/girobot/internal/database"
	"github.com/Trip2025/girobot/internal/extract"
	"github.com/Trip2025/girobot/internal/fetch"
	"github.com/Trip2025/girobot/internal/news"
	"github.com/Trip2025/girobot/internal/notify"
	"github.com/Trip2025/girobot/internal/pipeline"
	"github.com/Trip2025/girobot/internal/race"
	"github.com/Trip2025/girobot/internal/report"
	"github.com/Trip2025/girobot/internal/schedule"
)

// app is everything a command needs, built from cfg.
type app struct {
	loc       *time.Location
	cycle     *pipeline.Cycle
	scheduler *schedule.Scheduler
}

type appOptions struct {
	// out receives the message instead of the configured channel.
	out io.Writer
	// db records deliveries when set.
	db *database.DB
	// job is called by the scheduler; nil leaves the scheduler idle.
	job func(ctx context.Context)
}

func buildApp(ctx context.Context, opts appOptions) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	calendar, err := buildCalendar()
	if err != nil {
		return nil, err
	}

	chain, err := race.LoadFallbackChain(cfg.Race.FallbackFile)
	if err != nil {
		return nil, fmt.Errorf("loading fallback data: %w", err)
	}

	aliases, err := jerseyAliases(cfg.Race.JerseyAliases)
	if err != nil {
		return nil, err
	}

	var headlines pipeline.HeadlineSource
	if len(cfg.News.Feeds) > 0 {
		feeds := make([]news.Feed, len(cfg.News.Feeds))
		for i, f := range cfg.News.Feeds {
			feeds[i] = news.Feed{URL: f.URL, Name: f.Name}
		}
		headlines = news.NewSource(feeds, news.Options{
			MaxAge:  time.Duration(cfg.News.MaxAgeHours) * time.Hour,
			Timeout: cfg.FetchTimeout(),
		})
	}

	clock := schedule.LocalClock{Location: loc}
	assembler, err := pipeline.NewAssembler(pipeline.AssemblerDeps{
		Fetcher: fetch.New(cfg.Race.ResultsURL, fetch.Options{
			Timeout:   cfg.FetchTimeout(),
			UserAgent: cfg.Fetch.UserAgent,
		}),
		Extractor: extract.New(cfg.Race.Team, extract.Options{Aliases: aliases}),
		Calendar:  calendar,
		Chain:     chain,
		Headlines: headlines,
		Clock:     clock,
		Location:  loc,
	})
	if err != nil {
		return nil, err
	}

	spec := cfg.Schedule.Cron
	if spec == "" {
		if spec, err = schedule.DailySpec(cfg.Schedule.Time); err != nil {
			return nil, err
		}
	}
	job := opts.job
	if job == nil {
		job = func(context.Context) {}
	}
	scheduler, err := schedule.New(ctx, spec, loc, job)
	if err != nil {
		return nil, err
	}

	composer := compose.NewComposer(compose.Options{
		TeamLabel:  cfg.Race.TeamLabel,
		NextUpdate: compose.NextUpdateNotice(scheduler.Next(clock.Now())),
	})

	notifier, err := buildNotifier(opts.out)
	if err != nil {
		return nil, err
	}

	var log pipeline.DeliveryLog
	if opts.db != nil {
		log = opts.db
	}

	return &app{
		loc:       loc,
		cycle:     pipeline.New(assembler, composer, notifier, log),
		scheduler: scheduler,
	}, nil
}

func buildCalendar() (*race.Calendar, error) {
	entries := make([]race.Entry, len(cfg.Race.Calendar))
	for i, d := range cfg.Race.Calendar {
		entries[i] = race.Entry{Date: d.Date, Stage: d.Stage}
	}
	cal, err := race.NewCalendar(entries, cfg.Race.PreRaceStage)
	if err != nil {
		return nil, fmt.Errorf("race calendar: %w", err)
	}
	return cal, nil
}

// jerseyAliases overlays configured alias lists on the defaults.
func jerseyAliases(configured map[string][]string) (report.Aliases, error) {
	aliases := report.DefaultAliases()
	for name, labels := range configured {
		c, ok := report.ParseJerseyCategory(name)
		if !ok {
			return nil, fmt.Errorf("race.jersey_aliases: unknown category %q", name)
		}
		aliases[c] = labels
	}
	return aliases, nil
}

func buildNotifier(out io.Writer) (notify.Notifier, error) {
	if out != nil {
		return notify.NewLog(out), nil
	}

	d := cfg.Delivery
	switch d.Channel {
	case config.ChannelWhatsApp:
		return notify.NewWhatsApp(notify.TwilioConfig{
			AccountSID: os.Getenv(d.WhatsApp.AccountSIDEnv),
			AuthToken:  os.Getenv(d.WhatsApp.AuthTokenEnv),
			From:       os.Getenv(d.WhatsApp.FromEnv),
			To:         os.Getenv(d.WhatsApp.ToEnv),
			BaseURL:    d.WhatsApp.BaseURL,
		}), nil
	case config.ChannelEmail:
		return notify.NewEmail(notify.EmailConfig{
			Server:   d.Email.Server,
			Port:     d.Email.Port,
			Username: d.Email.Username,
			Password: os.Getenv(d.Email.PasswordEnv),
			From:     d.Email.From,
			To:       d.Email.To,
			Subject:  d.Email.Subject,
		}), nil
	case config.ChannelLog:
		return notify.NewLog(nil), nil
	}
	return nil, fmt.Errorf("unknown delivery channel %q", d.Channel)
}
