package capability

import (
	"strings"
	"testing"

	"github.com/fyrsmithlabs/decisiond/internal/decision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristic_Extract(t *testing.T) {
	h := NewHeuristic()

	tests := []struct {
		name       string
		text       string
		wantTitle  string
		wantTag    string
		wantConfid int
	}{
		{
			name:       "decision sentence",
			text:       "Morning all. We decided to use React for the frontend. More later",
			wantTitle:  "We decided to use React for the frontend",
			wantTag:    "frontend",
			wantConfid: heuristicMatchedConfidence,
		},
		{
			name:       "no decision pattern",
			text:       "Postgres schema review notes\nwe talked about indexes",
			wantTitle:  "Postgres schema review notes",
			wantTag:    "database",
			wantConfid: heuristicDefaultConfidence,
		},
		{
			name:       "no tag keywords",
			text:       "Let's go with the blue logo",
			wantTitle:  "Let's go with the blue logo",
			wantTag:    defaultTag,
			wantConfid: heuristicMatchedConfidence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := h.Extract(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTitle, c.Title)
			assert.Equal(t, tt.wantTag, c.Tag)
			assert.Equal(t, tt.wantConfid, c.Confidence)
			assert.True(t, c.Fallback)
		})
	}
}

func TestHeuristic_NoSentences(t *testing.T) {
	h := NewHeuristic()
	for _, text := range []string{"   ", "...", "?!", "\n.\n", "! ? ."} {
		t.Run(text, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() { _, err = h.Extract(text) })
			var low *decision.LowConfidenceError
			assert.ErrorAs(t, err, &low)
		})
	}
}

func TestHeuristic_LongTextIsTruncated(t *testing.T) {
	text := strings.Repeat("word ", 300)
	c, err := NewHeuristic().Extract(text)
	require.NoError(t, err)
	assert.LessOrEqual(t, len([]rune(c.Title)), decision.MaxTitleLen)
	assert.LessOrEqual(t, len([]rune(c.Summary)), maxFallbackSummary)
}

func TestHeuristic_Deterministic(t *testing.T) {
	h := NewHeuristic()
	text := "We will use Postgres and Redis behind the API. The frontend stays React."
	first, _ := h.Extract(text)
	for i := 0; i < 20; i++ {
		again, _ := h.Extract(text)
		assert.Equal(t, first, again)
	}
}
