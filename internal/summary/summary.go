// Package summary defines the DailySummary composite produced by the
// processing orchestrator and its stable Markdown rendering, consumed
// verbatim by downstream clients.
package summary

import (
	"fmt"
	"strings"
)

// Participant is one speaker present in a TimeBlock.
type Participant struct {
	SpeakerID   string
	DisplayName string
	Role        string
}

// TimeBlock is a contiguous period in the final summary.
type TimeBlock struct {
	StartSeconds      float64
	EndSeconds        float64
	Activity          string
	Location          string
	Participants      []Participant
	TranscriptSummary string
	ActionItems       []string
	ContextType       string
	SourceReliability string
}

// DailySummary is the ordered list of TimeBlocks produced for one video.
type DailySummary struct {
	VideoID   string
	Date      string
	TimeBlocks []TimeBlock
}

// formatHMS renders a second offset as HH:MM:SS.
func formatHMS(totalSeconds float64) string {
	s := int64(totalSeconds)
	h := s / 3600
	m := (s % 3600) / 60
	sec := s % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}

// RenderMarkdown renders the summary to the stable Markdown format
// documented in the external-interfaces contract. Consumers parse this
// format, so the field order and bullet structure here must not change:
//
//	## HH:MM:SS - HH:MM:SS: <activity>
//	* **Location:** <location>
//	* **Participants:**
//	  * **<speaker_id>:** <display_name> (<role>)
//	* **Transcript Summary:** <text>
//	* **Action Items:**
//	  * [ ] <item>
func RenderMarkdown(ds DailySummary) string {
	var b strings.Builder

	for _, tb := range ds.TimeBlocks {
		fmt.Fprintf(&b, "## %s - %s: %s\n", formatHMS(tb.StartSeconds), formatHMS(tb.EndSeconds), tb.Activity)
		fmt.Fprintf(&b, "* **Location:** %s\n", tb.Location)
		b.WriteString("* **Participants:**\n")
		for _, p := range tb.Participants {
			fmt.Fprintf(&b, "  * **%s:** %s (%s)\n", p.SpeakerID, p.DisplayName, p.Role)
		}
		fmt.Fprintf(&b, "* **Transcript Summary:** %s\n", tb.TranscriptSummary)
		b.WriteString("* **Action Items:**\n")
		for _, item := range tb.ActionItems {
			fmt.Fprintf(&b, "  * [ ] %s\n", item)
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}
