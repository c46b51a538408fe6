package synth

import (
	"strings"
	"unicode"

	"github.com/dmitrijs2005/ruya/internal/models"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Palette is the four-color scheme of a fallback animation.
type Palette struct {
	Primary   models.Color
	Secondary models.Color
	Accent    models.Color
	Highlight models.Color
}

// Hint is the three-color summary stored with an artifact.
func (p Palette) Hint() [3]models.Color {
	return [3]models.Color{p.Primary, p.Secondary, p.Accent}
}

type theme struct {
	name     string
	keywords []string
	palette  Palette
}

func rgb(r, g, b float64) models.Color { return models.Color{R: r, G: g, B: b} }

// Keywords are matched after normalize, so they are written without
// diacritics.
var themes = []theme{
	{"ocean", []string{"ocean", "deniz", "sea", "wave"}, Palette{
		rgb(0.02, 0.07, 0.19), rgb(0.04, 0.22, 0.43), rgb(0.09, 0.57, 0.75), rgb(0.62, 0.94, 0.99)}},
	{"forest", []string{"forest", "orman", "tree", "jungle"}, Palette{
		rgb(0.02, 0.12, 0.08), rgb(0.12, 0.35, 0.18), rgb(0.24, 0.75, 0.44), rgb(0.79, 0.97, 0.66)}},
	{"fire", []string{"fire", "ates", "lava", "sunset", "gun batimi"}, Palette{
		rgb(0.20, 0.01, 0.02), rgb(0.45, 0.07, 0.05), rgb(0.93, 0.41, 0.12), rgb(1.0, 0.84, 0.32)}},
	{"space", []string{"space", "uzay", "galaksi", "galaxy", "astro"}, Palette{
		rgb(0.02, 0.03, 0.13), rgb(0.15, 0.07, 0.26), rgb(0.37, 0.12, 0.44), rgb(0.94, 0.68, 1)}},
	{"dawn", []string{"sunrise", "gun dogumu", "safak", "dawn"}, Palette{
		rgb(0.10, 0.02, 0.14), rgb(0.36, 0.09, 0.27), rgb(0.98, 0.42, 0.32), rgb(1.0, 0.89, 0.58)}},
	{"flower", []string{"flower", "cicek", "bahar", "spring"}, Palette{
		rgb(0.12, 0.05, 0.21), rgb(0.28, 0.07, 0.36), rgb(0.91, 0.29, 0.51), rgb(0.99, 0.74, 0.88)}},
}

type colorWord struct {
	word  string
	color models.Color
}

var colorWords = []colorWord{
	{"mavi", rgb(0.19, 0.69, 0.78)},
	{"blue", rgb(0.0, 0.48, 1.0)},
	{"kirmizi", rgb(1.0, 0.23, 0.19)},
	{"red", rgb(1.0, 0.23, 0.19)},
	{"yesil", rgb(0.20, 0.78, 0.35)},
	{"green", rgb(0.20, 0.78, 0.35)},
	{"mor", rgb(0.69, 0.32, 0.87)},
	{"purple", rgb(0.69, 0.32, 0.87)},
	{"turuncu", rgb(1.0, 0.58, 0.0)},
	{"orange", rgb(1.0, 0.58, 0.0)},
	{"altin", rgb(1.0, 0.82, 0.39)},
	{"gold", rgb(1.0, 0.82, 0.39)},
}

var DefaultPalette = Palette{
	Primary:   rgb(0.04, 0.02, 0.13),
	Secondary: rgb(0.16, 0.05, 0.22),
	Accent:    rgb(0.48, 0.12, 0.42),
	Highlight: rgb(0.98, 0.71, 0.98),
}

// PaletteFor picks the palette of the first theme whose keyword occurs in
// seed. Otherwise the first color word decides a tinted palette, and
// DefaultPalette is used when nothing matches.
func PaletteFor(seed string) Palette {
	text := normalize(seed)

	for _, th := range themes {
		for _, kw := range th.keywords {
			if strings.Contains(text, kw) {
				return th.palette
			}
		}
	}

	// Color words are matched as whole words: "mor" and "red" are common
	// fragments of unrelated words.
	for _, tok := range strings.FieldsFunc(text, func(r rune) bool { return !unicode.IsLetter(r) }) {
		for _, cw := range colorWords {
			if tok == cw.word {
				return tinted(cw.color)
			}
		}
	}

	return DefaultPalette
}

func tinted(c models.Color) Palette {
	scale := func(k float64) models.Color { return rgb(c.R*k, c.G*k, c.B*k) }
	return Palette{
		Primary:   scale(0.65),
		Secondary: scale(0.45),
		Accent:    scale(0.85),
		Highlight: rgb(1, 1, 1),
	}
}

var foldMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalize lowercases s and strips diacritics, mapping Turkish dotless i
// onto i.
func normalize(s string) string {
	folded, _, err := transform.String(foldMarks, s)
	if err != nil {
		folded = s
	}
	return strings.ReplaceAll(strings.ToLower(folded), "ı", "i")
}
