package interpret

import (
	"strings"

	"github.com/dmitrijs2005/ruya/internal/models"
)

const (
	DefaultAdvice       = "Gökyüzü sezgine güven."
	DefaultRelationship = "Bu rüya, kalbindeki derin duyguları yansıtıyor. Aşkın yolda olduğuna işaret. ✨"
)

// Delimiters are the section markers the model is asked to emit.
type Delimiters struct {
	Advice       []string
	Relationship []string
}

var DefaultDelimiters = Delimiters{
	Advice:       []string{"Astro Öneri:", "Astro Advice:"},
	Relationship: []string{"💕 İlişki Mesajı:", "💕 Relationship Message:"},
}

// ParseSections splits model output into summary, advice and relationship
// parts. Text before the advice marker is the summary, text between the
// advice and relationship markers is the advice, and the rest is the
// relationship insight. Missing parts fall back to the canned defaults.
func ParseSections(content string, d Delimiters) models.Interpretation {
	out := models.Interpretation{
		Summary:             strings.TrimSpace(content),
		Advice:              DefaultAdvice,
		RelationshipInsight: DefaultRelationship,
	}

	head, tail, hasAdvice := cutFirst(content, d.Advice)
	if !hasAdvice {
		if before, rel, ok := cutFirst(content, d.Relationship); ok {
			out.Summary = strings.TrimSpace(before)
			setIfNotEmpty(&out.RelationshipInsight, rel)
		}
		return out
	}

	out.Summary = strings.TrimSpace(head)
	advice, rel, hasRel := cutFirst(tail, d.Relationship)
	setIfNotEmpty(&out.Advice, advice)
	if hasRel {
		setIfNotEmpty(&out.RelationshipInsight, rel)
	}
	return out
}

// cutFirst cuts s around the earliest occurrence of any marker.
func cutFirst(s string, markers []string) (before, after string, found bool) {
	best, bestLen := -1, 0
	for _, m := range markers {
		if m == "" {
			continue
		}
		if i := strings.Index(s, m); i >= 0 && (best < 0 || i < best) {
			best, bestLen = i, len(m)
		}
	}
	if best < 0 {
		return s, "", false
	}
	return s[:best], s[best+bestLen:], true
}

func setIfNotEmpty(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
