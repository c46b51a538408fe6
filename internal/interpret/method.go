package interpret

import "fmt"

// Method selects the interpretive tradition used in the system prompt.
type Method string

const (
	Astrological  Method = "astrological"
	Islamic       Method = "islamic"
	Psychological Method = "psychological"
	Numerological Method = "numerological"
	Tarot         Method = "tarot"
	Mythological  Method = "mythological"
)

var Methods = []Method{Astrological, Islamic, Psychological, Numerological, Tarot, Mythological}

// ParseMethod maps a name onto a Method; unknown names are an error.
func ParseMethod(s string) (Method, error) {
	if s == "" {
		return Astrological, nil
	}
	for _, m := range Methods {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown interpretation method %q", s)
}

var personas = map[Method]string{
	Astrological:  "You are an experienced astrologer and dream interpreter. Read the planets and zodiac energies present in the dream.",
	Islamic:       "You are a scholar of Islamic dream interpretation in the tradition of Ibn Sirin. Explain the symbols respectfully and hopefully.",
	Psychological: "You are a dream therapist grounded in Jungian and Freudian thought. Explain archetypes and hidden emotions with empathy.",
	Numerological: "You are a numerology expert. Decode the numbers, repetitions and cycles hidden in the dream.",
	Tarot:         "You are a tarot reader. Relate the dream to the major arcana cards it evokes and what they foretell.",
	Mythological:  "You are a scholar of world mythology. Connect the dream to myths, gods and heroic journeys it echoes.",
}

// SystemPrompt returns the instructions sent before the user's dream. Every
// variant asks for the section markers understood by ParseSections.
func (m Method) SystemPrompt() string {
	persona, ok := personas[m]
	if !ok {
		persona = personas[Astrological]
	}
	return persona + `

Do not use Markdown. Plain text only. Answer in three paragraphs:

1. A summary of the dream and the meaning of its symbols.
2. A paragraph starting with "Astro Öneri:" with celestial advice for the coming days.
3. A paragraph starting with "💕 İlişki Mesajı:" with one or two romantic, inspiring sentences about love and relationships.

Keep the tone warm and mystical.`
}
