package debate

import (
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestPlainTranscript_ThreeTurns(t *testing.T) {
	turns := []Turn{
		{Seq: 0, Speaker: "Host", Content: "Welcome to the debate."},
		{Seq: 1, Speaker: "John", Content: "AI helps students."},
		{Seq: 2, Speaker: "Jack", Content: "AI hurts learning."},
	}

	out := PlainTranscript(turns)
	assert.Equal(t,
		"Host: Welcome to the debate.\n\nJohn: AI helps students.\n\nJack: AI hurts learning.",
		out)
	assert.Len(t, strings.Split(out, "\n\n"), 3)
	assert.Equal(t, out, PlainTranscript(turns))
	assert.Empty(t, PlainTranscript(nil))
}

func TestDetailedTranscript(t *testing.T) {
	ts := time.Date(2025, 3, 9, 14, 5, 7, 0, time.UTC)
	st := State{
		Topic:        "Pineapple on pizza",
		Participants: DefaultParticipants("Pineapple on pizza"),
		Turns: []Turn{
			{Seq: 0, Speaker: "Host", Content: "Welcome!", Timestamp: ts},
			{Seq: 1, Speaker: "John", Content: "Sweet and savory.", Timestamp: ts.Add(2 * time.Second)},
		},
		Outcome: OutcomeForced,
	}

	out := DetailedTranscript(st, ts)
	assert.True(t, strings.HasPrefix(out, "🎭 AI DEBATE TRANSCRIPT\n"))
	assert.Contains(t, out, "Topic: Pineapple on pizza\n")
	assert.Contains(t, out, "Date: 2025-03-09 14:05:07\n")
	assert.Contains(t, out, "Total Messages: 2\n")
	assert.Contains(t, out, "Outcome: forced\n")
	assert.Contains(t, out, "[14:05:07] Host (Moderator):\nWelcome!\n")
	assert.Contains(t, out, "[14:05:09] John (Supporter):\nSweet and savory.\n")
	assert.Contains(t, out, strings.Repeat("-", 50))
	assert.Contains(t, out, "- Jack Messages: 0\n")
	assert.Equal(t, out, DetailedTranscript(st, ts))
}

func TestDetailedTranscript_AudienceComments(t *testing.T) {
	ts := time.Date(2025, 3, 9, 14, 5, 7, 0, time.UTC)
	st := State{
		Topic:        "Pineapple on pizza",
		Participants: DefaultParticipants("Pineapple on pizza"),
		Turns:        []Turn{{Seq: 0, Speaker: "Host", Content: "The overall winner: John!", Timestamp: ts}},
		Comments:     []Comment{{Author: "You", Content: "John was more convincing.", Timestamp: ts.Add(time.Minute)}},
	}

	out := DetailedTranscript(st, ts)
	assert.Contains(t, out, "Total Messages: 1\n")
	assert.Contains(t, out, "Audience Comments: 1\n")
	assert.Contains(t, out, "AUDIENCE COMMENTS:\n")
	assert.Contains(t, out, "[14:06:07] You:\nJohn was more convincing.\n")
	assert.Less(t, strings.Index(out, "The overall winner"), strings.Index(out, "AUDIENCE COMMENTS"))
	assert.Less(t, strings.Index(out, "AUDIENCE COMMENTS"), strings.Index(out, "DEBATE STATISTICS"))

	st.Comments = nil
	assert.NotContains(t, DetailedTranscript(st, ts), "AUDIENCE COMMENTS")
}

func TestTranscriptFilename(t *testing.T) {
	ts := time.Date(2025, 3, 9, 14, 5, 7, 0, time.UTC)
	assert.Equal(t, "debate_transcript_20250309_140507.txt", TranscriptFilename(ts))
}

// TestProperty_PlainTranscript_Blocks: 任意回合序列导出后按顺序包含每个
// "{speaker}: {content}" 块，且重复导出字节一致。
func TestProperty_PlainTranscript_Blocks(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("export is ordered and idempotent", prop.ForAll(
		func(speakers []string, contents []string) bool {
			n := len(speakers)
			if len(contents) < n {
				n = len(contents)
			}
			turns := make([]Turn, n)
			for i := 0; i < n; i++ {
				turns[i] = Turn{Seq: i, Speaker: speakers[i], Content: contents[i]}
			}

			out := PlainTranscript(turns)
			if out != PlainTranscript(turns) {
				return false
			}
			pos := 0
			for _, turn := range turns {
				block := turn.Speaker + ": " + turn.Content
				idx := strings.Index(out[pos:], block)
				if idx < 0 {
					return false
				}
				pos += idx + len(block)
			}
			return pos == len(out)
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
