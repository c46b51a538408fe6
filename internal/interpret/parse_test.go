package interpret

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSections(t *testing.T) {
	tests := []struct {
		name    string
		content string
		summary string
		advice  string
		rel     string
	}{
		{
			name:    "all sections",
			content: "You fly over the sea.\n\nAstro Öneri: Watch the moon.\n\n💕 İlişki Mesajı: Love is near.",
			summary: "You fly over the sea.",
			advice:  "Watch the moon.",
			rel:     "Love is near.",
		},
		{
			name:    "no markers",
			content: "  Just a summary.  ",
			summary: "Just a summary.",
			advice:  DefaultAdvice,
			rel:     DefaultRelationship,
		},
		{
			name:    "advice only",
			content: "Summary. Astro Öneri: Rest well.",
			summary: "Summary.",
			advice:  "Rest well.",
			rel:     DefaultRelationship,
		},
		{
			name:    "relationship only",
			content: "Summary. 💕 İlişki Mesajı: Open your heart.",
			summary: "Summary.",
			advice:  DefaultAdvice,
			rel:     "Open your heart.",
		},
		{
			name:    "empty advice keeps default",
			content: "Summary. Astro Öneri:   💕 İlişki Mesajı: Soon.",
			summary: "Summary.",
			advice:  DefaultAdvice,
			rel:     "Soon.",
		},
		{
			name:    "english markers",
			content: "A forest.\nAstro Advice: Walk slowly.\n💕 Relationship Message: Trust.",
			summary: "A forest.",
			advice:  "Walk slowly.",
			rel:     "Trust.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseSections(tt.content, DefaultDelimiters)
			assert.Equal(t, tt.summary, got.Summary)
			assert.Equal(t, tt.advice, got.Advice)
			assert.Equal(t, tt.rel, got.RelationshipInsight)
		})
	}
}

func TestParseSections_CustomDelimiters(t *testing.T) {
	d := Delimiters{Advice: []string{"ADVICE:"}, Relationship: []string{"LOVE:"}}
	got := ParseSections("s ADVICE: a LOVE: l", d)
	assert.Equal(t, "s", got.Summary)
	assert.Equal(t, "a", got.Advice)
	assert.Equal(t, "l", got.RelationshipInsight)
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("")
	assert.NoError(t, err)
	assert.Equal(t, Astrological, m)

	m, err = ParseMethod("tarot")
	assert.NoError(t, err)
	assert.Equal(t, Tarot, m)

	_, err = ParseMethod("palmistry")
	assert.Error(t, err)
}

func TestSystemPrompt_AsksForMarkers(t *testing.T) {
	for _, m := range append(Methods, Method("unknown")) {
		p := m.SystemPrompt()
		assert.Contains(t, p, "Astro Öneri:")
		assert.Contains(t, p, "💕 İlişki Mesajı:")
	}
	assert.NotEqual(t, Islamic.SystemPrompt(), Tarot.SystemPrompt())
}
