// Package report defines the fact record delivered once per cycle and the
// jersey categories it carries.
package report

import (
	"fmt"
	"strings"
)

// Sentinels used in place of unknown values. A finished record never holds
// an empty field.
const (
	NotAvailable       = "Data not available"
	PositionNotFound   = "Position not available"
	NoHighlights       = "No specific highlights available"
	SafetyPlaceholder  = "All riders finished safely"
	teamStandingSuffix = "in Team Classification"
)

// FactRecord is the unit of output: one stage summary ready for formatting.
type FactRecord struct {
	Stage           string `json:"stage" yaml:"stage"`
	Winner          string `json:"winner" yaml:"winner"`
	WinnerTeam      string `json:"winner_team" yaml:"winner_team"`
	Second          string `json:"second" yaml:"second"`
	Third           string `json:"third" yaml:"third"`
	ElapsedTime     string `json:"elapsed_time" yaml:"elapsed_time"`
	TeamHighlight   string `json:"team_highlight" yaml:"team_highlight"`
	TeamStanding    string `json:"team_standing" yaml:"team_standing"`
	TeamSafetyNote  string `json:"team_safety_note" yaml:"team_safety_note"`
	OverallLeader   string `json:"overall_leader" yaml:"overall_leader"`
	PointsLeader    string `json:"points_leader" yaml:"points_leader"`
	MountainsLeader string `json:"mountains_leader" yaml:"mountains_leader"`
	YouthLeader     string `json:"youth_leader" yaml:"youth_leader"`
	Headline        string `json:"headline" yaml:"headline"`
	SourceLink      string `json:"source_link" yaml:"source_link"`
	ReportDate      string `json:"report_date" yaml:"report_date"`
}

// Jersey returns the holder recorded for a category.
func (r FactRecord) Jersey(c JerseyCategory) string {
	switch c {
	case Overall:
		return r.OverallLeader
	case Points:
		return r.PointsLeader
	case Mountains:
		return r.MountainsLeader
	case Youth:
		return r.YouthLeader
	}
	return ""
}

// WithJersey returns a copy of r with the holder for c replaced.
func (r FactRecord) WithJersey(c JerseyCategory, holder string) FactRecord {
	switch c {
	case Overall:
		r.OverallLeader = holder
	case Points:
		r.PointsLeader = holder
	case Mountains:
		r.MountainsLeader = holder
	case Youth:
		r.YouthLeader = holder
	}
	return r
}

// Complete returns a copy of r where every blank field holds the sentinel
// for that field.
func (r FactRecord) Complete() FactRecord {
	fill := func(s *string, sentinel string) {
		if strings.TrimSpace(*s) == "" {
			*s = sentinel
		}
	}
	fill(&r.Stage, NotAvailable)
	fill(&r.Winner, NotAvailable)
	fill(&r.WinnerTeam, NotAvailable)
	fill(&r.Second, NotAvailable)
	fill(&r.Third, NotAvailable)
	fill(&r.ElapsedTime, NotAvailable)
	fill(&r.TeamHighlight, NoHighlights)
	fill(&r.TeamStanding, PositionNotFound)
	fill(&r.TeamSafetyNote, SafetyPlaceholder)
	fill(&r.OverallLeader, NotAvailable)
	fill(&r.PointsLeader, NotAvailable)
	fill(&r.MountainsLeader, NotAvailable)
	fill(&r.YouthLeader, NotAvailable)
	fill(&r.Headline, NotAvailable)
	fill(&r.SourceLink, NotAvailable)
	fill(&r.ReportDate, NotAvailable)
	return r
}

// Fields lists every field by name, in declaration order.
func (r FactRecord) Fields() []Field {
	return []Field{
		{"stage", r.Stage},
		{"winner", r.Winner},
		{"winner_team", r.WinnerTeam},
		{"second", r.Second},
		{"third", r.Third},
		{"elapsed_time", r.ElapsedTime},
		{"team_highlight", r.TeamHighlight},
		{"team_standing", r.TeamStanding},
		{"team_safety_note", r.TeamSafetyNote},
		{"overall_leader", r.OverallLeader},
		{"points_leader", r.PointsLeader},
		{"mountains_leader", r.MountainsLeader},
		{"youth_leader", r.YouthLeader},
		{"headline", r.Headline},
		{"source_link", r.SourceLink},
		{"report_date", r.ReportDate},
	}
}

// Field is a named record value.
type Field struct {
	Name  string
	Value string
}

// CompleteHeadline is the headline used when the results page has none.
func CompleteHeadline(stage int) string {
	return fmt.Sprintf("Stage %d complete", stage)
}

// StaleHeadline marks a record copied forward from an earlier stage.
func StaleHeadline(stage int) string {
	return fmt.Sprintf("Stage %d results will update soon", stage)
}

// TeamStanding renders a team classification position.
func TeamStanding(position string) string {
	return position + " " + teamStandingSuffix
}

// TeamHighlight renders the best-placed rider of the tracked team.
func TeamHighlight(rider, position, team string) string {
	return fmt.Sprintf("%s finished %s for %s", rider, position, team)
}
