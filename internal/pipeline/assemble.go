package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/Trip2025/girobot/internal/compose"
	"github.com/Trip2025/girobot/internal/extract"
	"github.com/Trip2025/girobot/internal/fetch"
	"github.com/Trip2025/girobot/internal/news"
	"github.com/Trip2025/girobot/internal/race"
	"github.com/Trip2025/girobot/internal/report"
	"github.com/Trip2025/girobot/internal/schedule"
)

// Source tells where an assembled record came from.
type Source string

const (
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
)

// PageFetcher retrieves the results page of a stage.
type PageFetcher interface {
	Fetch(ctx context.Context, stage int) (*fetch.Page, error)
}

// HeadlineSource finds a news headline for a stage.
type HeadlineSource interface {
	Headline(ctx context.Context, stage int) (news.Headline, bool)
}

// Assembly is the record chosen for one cycle.
type Assembly struct {
	Record report.FactRecord
	Stage  int
	Date   time.Time
	Source Source
	// Cause is the fetch or extraction failure that forced a fallback.
	Cause error
}

// Assembler produces the fact record for the current day.
type Assembler struct {
	fetcher   PageFetcher
	extractor *extract.Extractor
	calendar  *race.Calendar
	chain     *race.FallbackChain
	headlines HeadlineSource
	clock     schedule.Clock
	loc       *time.Location
}

// AssemblerDeps lists the collaborators of an Assembler. Headlines is
// optional; Clock defaults to the system clock in Location.
type AssemblerDeps struct {
	Fetcher   PageFetcher
	Extractor *extract.Extractor
	Calendar  *race.Calendar
	Chain     *race.FallbackChain
	Headlines HeadlineSource
	Clock     schedule.Clock
	Location  *time.Location
}

// NewAssembler creates an assembler. It fails when the fallback chain is
// empty, since no cycle could then be guaranteed a record.
func NewAssembler(deps AssemblerDeps) (*Assembler, error) {
	if deps.Chain == nil || deps.Chain.Len() == 0 {
		return nil, race.ErrEmptyFallbackChain
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	clock := deps.Clock
	if clock == nil {
		clock = schedule.LocalClock{Location: loc}
	}
	return &Assembler{
		fetcher:   deps.Fetcher,
		extractor: deps.Extractor,
		calendar:  deps.Calendar,
		chain:     deps.Chain,
		headlines: deps.Headlines,
		clock:     clock,
		loc:       loc,
	}, nil
}

// Assemble builds the record for today.
func (a *Assembler) Assemble(ctx context.Context) Assembly {
	return a.AssembleFor(ctx, a.clock.Now())
}

// AssembleFor builds the record as it would be on day. The live page is
// tried first; any failure falls back to the chain. The result always
// carries a complete record.
func (a *Assembler) AssembleFor(ctx context.Context, day time.Time) Assembly {
	day = day.In(a.loc)
	stage := a.calendar.Resolve(day)
	asm := Assembly{Stage: stage, Date: day, Source: SourceLive}

	rec, err := a.live(ctx, stage)
	if err != nil {
		slog.WarnContext(ctx, "live results unavailable, using fallback", "stage", stage, "err", err)
		asm.Source = SourceFallback
		asm.Cause = err
		rec, err = a.chain.Select(stage)
		if err != nil {
			// Unreachable with a non-empty chain.
			slog.ErrorContext(ctx, "fallback selection failed", "stage", stage, "err", err)
		}
	}

	rec.ReportDate = compose.ReportDate(day)
	asm.Record = rec.Complete()
	slog.InfoContext(ctx, "record assembled", "stage", stage, "source", asm.Source)
	return asm
}

func (a *Assembler) live(ctx context.Context, stage int) (report.FactRecord, error) {
	page, err := a.fetcher.Fetch(ctx, stage)
	if err != nil {
		return report.FactRecord{}, err
	}
	rec, err := a.extractor.Extract(stage, page.URL, page.HTML)
	if err != nil {
		return report.FactRecord{}, err
	}

	if a.headlines != nil && rec.Headline == report.CompleteHeadline(stage) {
		if h, ok := a.headlines.Headline(ctx, stage); ok {
			rec.Headline = h.Title
		}
	}
	return rec, nil
}
