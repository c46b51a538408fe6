package synth

import (
	"context"
	"errors"
	"image/gif"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/ruya/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallOptions() Options {
	return Options{Width: 36, Height: 64, FPS: 5, Duration: 2 * time.Second}
}

func decode(t *testing.T, path string) *gif.GIF {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	g, err := gif.DecodeAll(f)
	require.NoError(t, err)
	return g
}

func TestRender_WritesAnimatedGIF(t *testing.T) {
	dir := t.TempDir()
	r := New(smallOptions(), logging.Nop())

	path, err := r.Render(context.Background(), "deniz kenarında yürüyüş", dir)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.Equal(t, ".gif", filepath.Ext(path))

	g := decode(t, path)
	assert.Len(t, g.Image, 10)
	assert.Equal(t, 20, g.Delay[0])
	assert.Equal(t, 36, g.Image[0].Bounds().Dx())
	assert.Equal(t, 64, g.Image[0].Bounds().Dy())
}

func TestRender_Deterministic(t *testing.T) {
	r := New(smallOptions(), logging.Nop())

	p1, err := r.Render(context.Background(), "uzayda süzülüyordum", t.TempDir())
	require.NoError(t, err)
	p2, err := r.Render(context.Background(), "uzayda süzülüyordum", t.TempDir())
	require.NoError(t, err)

	b1, err := os.ReadFile(p1)
	require.NoError(t, err)
	b2, err := os.ReadFile(p2)
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func TestRender_SkipsFailedFrames(t *testing.T) {
	r := New(smallOptions(), logging.Nop())
	r.frameHook = func(i int) error {
		if i%2 == 0 {
			return errors.New("raster failed")
		}
		if i == 3 {
			panic("boom")
		}
		return nil
	}

	path, err := r.Render(context.Background(), "orman", t.TempDir())
	require.NoError(t, err)
	assert.Len(t, decode(t, path).Image, 4)
}

func TestRender_NoFrames(t *testing.T) {
	dir := t.TempDir()
	r := New(smallOptions(), logging.Nop())
	r.frameHook = func(int) error { return errors.New("raster failed") }

	_, err := r.Render(context.Background(), "orman", dir)
	require.ErrorIs(t, err, ErrNoFrames)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRender_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := New(smallOptions(), logging.Nop())
	r.frameHook = func(i int) error {
		if i == 2 {
			cancel()
		}
		return nil
	}

	_, err := r.Render(ctx, "orman", t.TempDir())
	require.ErrorIs(t, err, context.Canceled)
}

func TestRender_InvalidOptions(t *testing.T) {
	r := New(Options{Width: 0, Height: 10, FPS: 10, Duration: time.Second}, logging.Nop())
	_, err := r.Render(context.Background(), "orman", t.TempDir())
	require.ErrorIs(t, err, ErrInvalidOptions)
}

func TestBuildRamp_Endpoints(t *testing.T) {
	ramp := buildRamp(DefaultPalette)
	require.Len(t, ramp, 256)

	r, g, b, _ := ramp[0].RGBA()
	assert.Equal(t, uint32(to8(DefaultPalette.Primary.R))*0x101, r)
	assert.Equal(t, uint32(to8(DefaultPalette.Primary.G))*0x101, g)
	assert.Equal(t, uint32(to8(DefaultPalette.Primary.B))*0x101, b)

	r, g, b, _ = ramp[255].RGBA()
	assert.Equal(t, []uint32{0xffff, 0xffff, 0xffff}, []uint32{r, g, b})
}
