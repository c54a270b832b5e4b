// Package extract turns a stage results page into a fact record.
//
// The page is queried with fixed structural selectors. Podium data is
// mandatory and any gap in it fails the whole extraction with a typed
// error. Jerseys, headline and team standings are optional: when a section
// is absent its fields fall back to sentinels, but a section that is present
// and malformed fails like the podium. Row order in the results table is
// taken as rank order.
package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Trip2025/girobot/internal/report"
)

const podiumSize = 3

// Selectors locate each piece of the results page.
type Selectors struct {
	ResultsTable  string
	ResultRows    string
	RiderName     string
	TeamName      string
	Time          string
	Position      string
	JerseySection string
	JerseyItem    string
	JerseyLabel   string
	JerseyHolder  string
	Headline      string
	TeamStandings string
	StandingRows  string
}

// DefaultSelectors matches the cyclingnews results layout.
func DefaultSelectors() Selectors {
	return Selectors{
		ResultsTable:  ".results-table",
		ResultRows:    "tbody tr",
		RiderName:     ".rider-name",
		TeamName:      ".team-name",
		Time:          ".time",
		Position:      ".position",
		JerseySection: ".jersey-classifications",
		JerseyItem:    ".jersey-item",
		JerseyLabel:   ".jersey-type",
		JerseyHolder:  ".jersey-holder",
		Headline:      "h1.article-title",
		TeamStandings: ".team-standings",
		StandingRows:  "tr",
	}
}

// Extractor parses results pages for one tracked team.
type Extractor struct {
	team      string
	aliases   report.Aliases
	selectors Selectors
}

// Options configures an Extractor. Zero values select the defaults.
type Options struct {
	Aliases   report.Aliases
	Selectors *Selectors
}

// New creates an extractor that highlights team.
func New(team string, opts Options) *Extractor {
	e := &Extractor{
		team:      strings.TrimSpace(team),
		aliases:   opts.Aliases,
		selectors: DefaultSelectors(),
	}
	if len(e.aliases) == 0 {
		e.aliases = report.DefaultAliases()
	}
	if opts.Selectors != nil {
		e.selectors = *opts.Selectors
	}
	return e
}

// Extract parses html, the results page for stage found at sourceURL.
// ReportDate is left empty for the caller to stamp.
func (e *Extractor) Extract(stage int, sourceURL, html string) (report.FactRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return report.FactRecord{}, fmt.Errorf("%w: parsing document: %v", ErrMissingResultsTable, err)
	}

	table := doc.Find(e.selectors.ResultsTable).First()
	if table.Length() == 0 {
		return report.FactRecord{}, ErrMissingResultsTable
	}

	rows := table.Find(e.selectors.ResultRows)
	if rows.Length() < podiumSize {
		return report.FactRecord{}, &InsufficientRowsError{Rows: rows.Length()}
	}

	rec := report.FactRecord{
		Stage:          strconv.Itoa(stage),
		TeamSafetyNote: report.SafetyPlaceholder,
		SourceLink:     sourceURL,
	}

	winner, second, third := rows.Eq(0), rows.Eq(1), rows.Eq(2)
	fields := []struct {
		dst  *string
		row  *goquery.Selection
		idx  int
		sel  string
		name string
	}{
		{&rec.Winner, winner, 0, e.selectors.RiderName, "winner"},
		{&rec.WinnerTeam, winner, 0, e.selectors.TeamName, "winner_team"},
		{&rec.ElapsedTime, winner, 0, e.selectors.Time, "elapsed_time"},
		{&rec.Second, second, 1, e.selectors.RiderName, "second"},
		{&rec.Third, third, 2, e.selectors.RiderName, "third"},
	}
	for _, f := range fields {
		v, ok := textOf(f.row, f.sel)
		if !ok {
			return report.FactRecord{}, &MissingFieldError{Field: f.name, Row: f.idx}
		}
		*f.dst = v
	}

	rec, err = e.applyJerseys(doc, rec)
	if err != nil {
		return report.FactRecord{}, err
	}

	rec.Headline = report.CompleteHeadline(stage)
	if h, ok := textOf(doc.Selection, e.selectors.Headline); ok {
		rec.Headline = h
	}

	if rec.TeamStanding, err = e.teamStanding(doc); err != nil {
		return report.FactRecord{}, err
	}
	if rec.TeamHighlight, err = e.teamHighlight(rows); err != nil {
		return report.FactRecord{}, err
	}

	return rec, nil
}

// applyJerseys fills the four jersey holders. A present item must carry
// both a label and a holder; a later item for the same category replaces
// an earlier one.
func (e *Extractor) applyJerseys(doc *goquery.Document, rec report.FactRecord) (report.FactRecord, error) {
	for _, c := range report.Categories {
		rec = rec.WithJersey(c, report.NotAvailable)
	}

	section := doc.Find(e.selectors.JerseySection).First()
	if section.Length() == 0 {
		return rec, nil
	}

	var err error
	section.Find(e.selectors.JerseyItem).EachWithBreak(func(i int, item *goquery.Selection) bool {
		label, ok := textOf(item, e.selectors.JerseyLabel)
		if !ok {
			err = &MissingFieldError{Field: "jersey_type", Row: i}
			return false
		}
		holder, ok := textOf(item, e.selectors.JerseyHolder)
		if !ok {
			err = &MissingFieldError{Field: "jersey_holder", Row: i}
			return false
		}
		if c, ok := e.aliases.Classify(label); ok {
			rec = rec.WithJersey(c, holder)
		}
		return true
	})
	if err != nil {
		return report.FactRecord{}, err
	}
	return rec, nil
}

// teamStanding reads the tracked team's row of the team classification.
// An absent section or team is not an error; a matched row without a
// position is.
func (e *Extractor) teamStanding(doc *goquery.Document) (string, error) {
	section := doc.Find(e.selectors.TeamStandings).First()
	if section.Length() == 0 || e.team == "" {
		return report.PositionNotFound, nil
	}

	standing := report.PositionNotFound
	var err error
	section.Find(e.selectors.StandingRows).EachWithBreak(func(i int, row *goquery.Selection) bool {
		if !e.mentionsTeam(row) {
			return true
		}
		pos, ok := textOf(row, e.selectors.Position)
		if !ok {
			err = &MissingFieldError{Field: "team_position", Row: i}
			return false
		}
		standing = report.TeamStanding(pos)
		return false
	})
	return standing, err
}

// teamHighlight picks the tracked team's best placed rider among the result
// rows. Ties keep the first row. Every matched row needs a rider name and a
// numeric position.
func (e *Extractor) teamHighlight(rows *goquery.Selection) (string, error) {
	if e.team == "" {
		return report.NoHighlights, nil
	}

	best := -1
	var bestName, bestPos string
	var err error
	rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
		if !e.mentionsTeam(row) {
			return true
		}
		name, ok := textOf(row, e.selectors.RiderName)
		if !ok {
			err = &MissingFieldError{Field: "team_rider", Row: i}
			return false
		}
		posText, _ := textOf(row, e.selectors.Position)
		pos, ok := leadingInt(posText)
		if !ok {
			err = &MissingFieldError{Field: "position", Row: i}
			return false
		}
		if best < 0 || pos < best {
			best, bestName, bestPos = pos, name, posText
		}
		return true
	})
	if err != nil {
		return "", err
	}
	if best < 0 {
		return report.NoHighlights, nil
	}
	return report.TeamHighlight(bestName, bestPos, e.team), nil
}

func (e *Extractor) mentionsTeam(s *goquery.Selection) bool {
	return strings.Contains(strings.ToLower(s.Text()), strings.ToLower(e.team))
}

// textOf returns the collapsed text of the first match of sel under s.
func textOf(s *goquery.Selection, sel string) (string, bool) {
	found := s.Find(sel).First()
	if found.Length() == 0 {
		return "", false
	}
	text := strings.Join(strings.Fields(found.Text()), " ")
	return text, text != ""
}

// leadingInt parses the digits a position starts with ("6", "6th", "6.").
func leadingInt(s string) (int, bool) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	return n, err == nil
}
