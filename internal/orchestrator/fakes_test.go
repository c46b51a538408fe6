package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmitrijs2005/ruya/internal/dreamlog"
	"github.com/dmitrijs2005/ruya/internal/ledger"
	"github.com/dmitrijs2005/ruya/internal/models"
	"github.com/dmitrijs2005/ruya/internal/synth"
)

var errBoom = errors.New("boom")

type fakeInterpreter struct {
	mu     sync.Mutex
	result models.Interpretation
	err    error
	calls  int
}

func (f *fakeInterpreter) Interpret(ctx context.Context, _ string) (models.Interpretation, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return models.Interpretation{}, err
	}
	return f.result, f.err
}

type fakeVideo struct {
	jobID       string
	url         string
	progress    []models.GenerationProgress
	genErr      error
	downloadErr error
	// block makes Generate wait for ctx to be cancelled.
	block   bool
	started chan struct{}
}

func (f *fakeVideo) Generate(ctx context.Context, _, _ string, onProgress func(models.GenerationProgress)) (string, string, error) {
	if f.block {
		if f.started != nil {
			close(f.started)
		}
		<-ctx.Done()
		return "", "", ctx.Err()
	}
	for _, p := range f.progress {
		onProgress(p)
	}
	if f.genErr != nil {
		return "", "", f.genErr
	}
	return f.jobID, f.url, nil
}

func (f *fakeVideo) Download(_ context.Context, _, dir string) (string, error) {
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	fh, err := os.CreateTemp(dir, "remote-*.mp4")
	if err != nil {
		return "", err
	}
	_, _ = fh.WriteString("mp4")
	return fh.Name(), fh.Close()
}

func (f *fakeVideo) Resolution() string { return "720p" }
func (f *fakeVideo) Duration() string   { return "5s" }

type failingSynth struct{}

func (failingSynth) Render(context.Context, string, string) (string, error) { return "", synth.ErrNoFrames }
func (failingSynth) Options() synth.Options                                 { return synth.DefaultOptions() }

type failingArtifacts struct {
	ArtifactStore
}

func (failingArtifacts) Persist(context.Context, string, string, *models.Interpretation, string, [3]models.Color) (models.DreamArtifact, error) {
	return models.DreamArtifact{}, errBoom
}

type countingLedger struct {
	Ledger
	spends int
}

func (c *countingLedger) Spend(ctx context.Context, cost int) (ledger.Debit, bool) {
	c.spends++
	return c.Ledger.Spend(ctx, cost)
}

type refusingLedger struct {
	Ledger
}

func (refusingLedger) Credit(context.Context, int) error { return errors.New("disk full") }

type fakeWatermark struct {
	err error
}

func (f fakeWatermark) Watermark(_ context.Context, path string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	out := filepath.Join(filepath.Dir(path), "stamped-"+filepath.Base(path))
	if err := os.WriteFile(out, []byte("stamped"), 0o600); err != nil {
		return "", err
	}
	return out, nil
}

type recorder struct {
	mu      sync.Mutex
	entries []dreamlog.Entry
	records []models.DreamLogRecord
	uploads []string
	err     error
	delay   time.Duration
}

func (r *recorder) Log(ctx context.Context, e dreamlog.Entry) (models.RemoteDream, error) {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return models.RemoteDream{}, r.err
}

func (r *recorder) Add(_ context.Context, rec models.DreamLogRecord) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return int64(len(r.records)), r.err
}

func (r *recorder) UploadFile(_ context.Context, path string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploads = append(r.uploads, path)
	return "https://s3.local/" + filepath.Base(path), r.err
}
