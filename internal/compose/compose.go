// Package compose renders a fact record as the daily chat message.
package compose

import (
	"fmt"
	"strings"
	"time"

	"github.com/Trip2025/girobot/internal/report"
)

// DefaultTeamLabel is the heading used for the tracked team block.
const DefaultTeamLabel = "Lidl–Trek"

// Options controls the parts of the message that are not taken from the
// record.
type Options struct {
	// TeamLabel heads the tracked team block.
	TeamLabel string
	// NextUpdate is shown in the closing line, e.g. "8:00 AM AEST tomorrow".
	NextUpdate string
}

// Composer formats fact records into messages.
type Composer struct {
	teamLabel  string
	nextUpdate string
}

// NewComposer creates a composer. A blank TeamLabel selects
// DefaultTeamLabel.
func NewComposer(opts Options) *Composer {
	c := &Composer{teamLabel: opts.TeamLabel, nextUpdate: opts.NextUpdate}
	if c.teamLabel == "" {
		c.teamLabel = DefaultTeamLabel
	}
	return c
}

// Compose renders rec. Blank fields are shown as their sentinels.
func (c *Composer) Compose(rec report.FactRecord) string {
	rec = rec.Complete()

	sections := []string{
		fmt.Sprintf("🚴‍♂️ *GiroBot Daily Update – %s*", rec.ReportDate),
		strings.Join([]string{
			fmt.Sprintf("🏁 *Stage %s Summary*", rec.Stage),
			fmt.Sprintf("🏆 Winner: %s (%s)", rec.Winner, rec.WinnerTeam),
			"🥈 2nd: " + rec.Second,
			"🥉 3rd: " + rec.Third,
			"⏱️ Time: " + rec.ElapsedTime,
		}, "\n"),
		strings.Join([]string{
			fmt.Sprintf("🟣 *%s Highlights*", c.teamLabel),
			"✅ " + rec.TeamHighlight,
			"📊 Team standing: " + rec.TeamStanding,
			"😎 " + rec.TeamSafetyNote,
		}, "\n"),
		strings.Join([]string{
			"🎽 *Jersey Leaders*",
			"🩷 Maglia Rosa: " + rec.OverallLeader,
			"🟣 Points: " + rec.PointsLeader,
			"🔵 KOM: " + rec.MountainsLeader,
			"⚪ Youth: " + rec.YouthLeader,
		}, "\n"),
		"📰 *Top Story*: " + rec.Headline + "\n" +
			"🔗 Read more: " + rec.SourceLink,
	}
	if c.nextUpdate != "" {
		sections = append(sections, fmt.Sprintf("🕗 Next update: %s.", c.nextUpdate))
	}
	return strings.Join(sections, "\n\n")
}

// NextUpdateNotice describes a daily send time, such as
// "8:00 AM AEST tomorrow". at must carry the race location.
func NextUpdateNotice(at time.Time) string {
	return at.Format("3:04 PM MST") + " tomorrow"
}

// ReportDate formats a day the way it appears in the message header.
func ReportDate(t time.Time) string {
	return t.Format("Monday 02 January")
}
