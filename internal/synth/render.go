// Package synth renders a short procedural animation for a prompt when no
// remote video is available. The output is deterministic for a given seed.
package synth

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/gif"
	"math"
	"math/rand/v2"
	"os"
	"time"

	"github.com/dmitrijs2005/ruya/internal/logging"
	"github.com/dmitrijs2005/ruya/internal/models"
)

var (
	ErrNoFrames       = errors.New("no frames were rendered")
	ErrInvalidOptions = errors.New("invalid render options")
)

type Options struct {
	Width    int
	Height   int
	FPS      int
	Duration time.Duration
}

func DefaultOptions() Options {
	return Options{Width: 180, Height: 320, FPS: 10, Duration: 8 * time.Second}
}

func (o Options) frameCount() int {
	return int(o.Duration.Seconds() * float64(o.FPS))
}

type Renderer struct {
	opts   Options
	logger logging.Logger

	// frameHook lets tests fail individual frames.
	frameHook func(frame int) error
}

func New(opts Options, logger logging.Logger) *Renderer {
	return &Renderer{opts: opts, logger: logger.With("module", "synth")}
}

// Options reports the render settings.
func (r *Renderer) Options() Options { return r.opts }

// Render writes an animated GIF for seed into a new file under dir and
// returns its path. Frames that fail to draw are skipped; if none could be
// drawn the file is removed and ErrNoFrames is returned.
func (r *Renderer) Render(ctx context.Context, seed, dir string) (string, error) {
	o := r.opts
	if o.Width <= 0 || o.Height <= 0 || o.FPS <= 0 || o.frameCount() <= 0 {
		return "", fmt.Errorf("%w: %+v", ErrInvalidOptions, o)
	}

	palette := PaletteFor(seed)
	scene := newScene(o, seed)
	ramp := buildRamp(palette)
	total := o.frameCount()

	anim := &gif.GIF{LoopCount: 0}
	delay := max(1, 100/o.FPS)

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		frame, err := r.drawFrame(scene, ramp, i, total)
		if err != nil {
			r.logger.Warn(ctx, "skipping frame", "frame", i, "error", err)
			continue
		}
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, delay)
	}

	if len(anim.Image) == 0 {
		return "", ErrNoFrames
	}

	f, err := os.CreateTemp(dir, "fallback-*.gif")
	if err != nil {
		return "", err
	}
	if err := gif.EncodeAll(f, anim); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("encode gif: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}

	r.logger.Debug(ctx, "fallback rendered", "frames", len(anim.Image), "skipped", total-len(anim.Image))
	return f.Name(), nil
}

func (r *Renderer) drawFrame(s *scene, ramp color.Palette, i, total int) (img *image.Paletted, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("draw frame %d: %v", i, p)
		}
	}()

	if r.frameHook != nil {
		if err := r.frameHook(i); err != nil {
			return nil, err
		}
	}

	field := s.field(i, total)
	img = image.NewPaletted(image.Rect(0, 0, s.w, s.h), ramp)
	for idx, t := range field {
		img.Pix[idx] = rampIndex(t)
	}
	return img, nil
}

// Colors are laid on a single 256-step ramp running primary, secondary,
// accent, highlight, white. Drawing happens in ramp space and each pixel
// maps straight to a palette index.
const (
	tPrimary   = 0.0
	tSecondary = 0.25
	tAccent    = 0.5
	tHighlight = 0.75
	tWhite     = 1.0
)

func buildRamp(p Palette) color.Palette {
	stops := []models.Color{p.Primary, p.Secondary, p.Accent, p.Highlight, {R: 1, G: 1, B: 1}}
	ramp := make(color.Palette, 256)
	for i := range ramp {
		t := float64(i) / 255 * float64(len(stops)-1)
		k := min(int(t), len(stops)-2)
		c := lerpColor(stops[k], stops[k+1], t-float64(k))
		ramp[i] = color.RGBA{R: to8(c.R), G: to8(c.G), B: to8(c.B), A: 255}
	}
	return ramp
}

func lerpColor(a, b models.Color, t float64) models.Color {
	return models.Color{R: lerp(a.R, b.R, t), G: lerp(a.G, b.G, t), B: lerp(a.B, b.B, t)}
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func to8(v float64) uint8 { return uint8(math.Round(min(max(v, 0), 1) * 255)) }

func rampIndex(t float64) uint8 { return uint8(math.Round(min(max(t, 0), 1) * 255)) }

type star struct {
	x, y, phase, size float64
}

type scene struct {
	w, h  int
	stars []star
	buf   []float64
}

func newScene(o Options, seed string) *scene {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	sum := h.Sum64()
	rng := rand.New(rand.NewPCG(sum, sum^0x9e3779b97f4a7c15))

	s := &scene{w: o.Width, h: o.Height, buf: make([]float64, o.Width*o.Height)}
	n := max(20, o.Width*o.Height/700)
	s.stars = make([]star, n)
	for i := range s.stars {
		s.stars[i] = star{
			x:     rng.Float64() * float64(o.Width),
			y:     rng.Float64() * float64(o.Height),
			phase: rng.Float64() * 2 * math.Pi,
			size:  0.6 + rng.Float64()*1.2,
		}
	}
	return s
}

// field renders frame i into the scene buffer in ramp space.
func (s *scene) field(i, total int) []float64 {
	w, h := float64(s.w), float64(s.h)
	progress := float64(i) / float64(max(total-1, 1))
	frame := float64(i)

	glowX, glowY := w/2, h*0.35
	glowR := math.Max(w, h)
	cx, cy := w/2, h/2
	ringWidth := math.Max(1, w/160)

	type blob struct{ x, y, r float64 }
	blobs := make([]blob, 6)
	for k := range blobs {
		phase := progress*2*math.Pi + float64(k)
		blobs[k] = blob{
			x: math.Mod(w*(0.1+float64(k)*0.16)+progress*w*0.3, w),
			y: h * (0.2 + math.Sin(phase*3)*0.1 + float64(k)*0.1),
			r: w * (0.25 + 0.05*math.Sin(phase)),
		}
	}

	for py := 0; py < s.h; py++ {
		y := float64(py)
		for px := 0; px < s.w; px++ {
			x := float64(px)

			// Diagonal gradient with a slow shimmer.
			diag := (x/w + y/h) / 2
			t := lerp(tPrimary, tAccent, diag) + 0.03*math.Sin(progress*2*math.Pi+y/40)

			// Radial glow towards the highlight.
			if d := math.Hypot(x-glowX, y-glowY) / glowR; d < 1 {
				g := (1 - d) * (1 - d) * 0.6
				t = lerp(t, tHighlight, g)
			}

			for _, b := range blobs {
				if d := math.Hypot(x-b.x, y-b.y); d < b.r {
					t = lerp(t, tAccent, 0.15*(1-d/b.r))
				}
			}

			r := math.Hypot(x-cx, y-cy)
			for k := 1; k <= 3; k++ {
				if math.Abs(r-float64(k)*w*0.18) < ringWidth {
					t = lerp(t, tSecondary, 0.35)
				}
			}

			s.buf[py*s.w+px] = t
		}
	}

	// Orbiting particles.
	for k := 1; k <= 3; k++ {
		angle := frame * 0.02 * float64(k) * 4
		radius := float64(k) * w * 0.18
		s.disc(cx+math.Cos(angle)*radius, cy+math.Sin(angle)*radius, math.Max(2, w/60), tHighlight+0.1)
	}

	for _, st := range s.stars {
		twinkle := 0.5 + 0.5*math.Sin(st.phase+progress*4*math.Pi)
		s.disc(st.x, st.y, st.size, lerp(tHighlight, tWhite, twinkle))
	}

	return s.buf
}

func (s *scene) disc(x, y, r, t float64) {
	x0, x1 := max(0, int(x-r)), min(s.w-1, int(x+r))
	y0, y1 := max(0, int(y-r)), min(s.h-1, int(y+r))
	for py := y0; py <= y1; py++ {
		for px := x0; px <= x1; px++ {
			if math.Hypot(float64(px)-x, float64(py)-y) <= r {
				idx := py*s.w + px
				s.buf[idx] = math.Max(s.buf[idx], t)
			}
		}
	}
}
