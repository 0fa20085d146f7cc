package debate

import (
	"fmt"
	"strings"
	"time"
)

// PlainTranscript renders turns as "{speaker}: {content}" blocks separated by
// a blank line. The output depends only on the turns.
func PlainTranscript(turns []Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(t.Speaker)
		b.WriteString(": ")
		b.WriteString(t.Content)
	}
	return b.String()
}

// DetailedTranscript renders the dashboard export: a header, one timestamped
// block per turn with role labels, audience comments, and per-speaker
// statistics.
func DetailedTranscript(st State, generatedAt time.Time) string {
	roles := make(map[string]Role, len(st.Participants))
	for _, p := range st.Participants {
		roles[p.Name] = p.Role
	}

	var b strings.Builder
	b.WriteString("🎭 AI DEBATE TRANSCRIPT\n")
	b.WriteString("======================\n")
	fmt.Fprintf(&b, "Topic: %s\n", st.Topic)
	fmt.Fprintf(&b, "Date: %s\n", generatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Total Messages: %d\n", len(st.Turns))
	if st.Outcome != "" {
		fmt.Fprintf(&b, "Outcome: %s\n", st.Outcome)
	}
	if len(st.Comments) > 0 {
		fmt.Fprintf(&b, "Audience Comments: %d\n", len(st.Comments))
	}
	b.WriteString("\nDEBATE CONTENT:\n")
	b.WriteString("===============\n")

	counts := make(map[string]int, len(st.Participants))
	for _, t := range st.Turns {
		counts[t.Speaker]++
		label := ""
		if l := roles[t.Speaker].Label(); l != "" {
			label = " (" + l + ")"
		}
		fmt.Fprintf(&b, "\n[%s] %s%s:\n%s\n\n%s\n",
			t.Timestamp.Format("15:04:05"), t.Speaker, label, t.Content, strings.Repeat("-", 50))
	}

	if len(st.Comments) > 0 {
		b.WriteString("\nAUDIENCE COMMENTS:\n")
		b.WriteString("==================\n")
		for _, c := range st.Comments {
			fmt.Fprintf(&b, "\n[%s] %s:\n%s\n", c.Timestamp.Format("15:04:05"), c.Author, c.Content)
		}
	}

	b.WriteString("\n\nDEBATE STATISTICS:\n")
	b.WriteString("==================\n")
	for _, p := range st.Participants {
		fmt.Fprintf(&b, "- %s Messages: %d\n", p.Name, counts[p.Name])
	}
	return b.String()
}

// TranscriptFilename is the export name for a transcript generated at t.
func TranscriptFilename(t time.Time) string {
	return "debate_transcript_" + t.Format("20060102_150405") + ".txt"
}
