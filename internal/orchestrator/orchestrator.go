// Package orchestrator runs one dream generation end to end: debit,
// interpretation, video (remote or local fallback), persistence and
// best-effort logging, refunding the debit when anything before
// persistence fails.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/ruya/internal/dreamlog"
	"github.com/dmitrijs2005/ruya/internal/ledger"
	"github.com/dmitrijs2005/ruya/internal/logging"
	"github.com/dmitrijs2005/ruya/internal/metrics"
	"github.com/dmitrijs2005/ruya/internal/models"
	"github.com/dmitrijs2005/ruya/internal/synth"
	"github.com/rivo/uniseg"
)

const DefaultBackgroundTimeout = 30 * time.Second

type ProgressFunc func(models.GenerationProgress)

type Ledger interface {
	Spend(ctx context.Context, cost int) (ledger.Debit, bool)
	Credit(ctx context.Context, amount int) error
}

type Interpreter interface {
	Interpret(ctx context.Context, prompt string) (models.Interpretation, error)
}

type VideoGenerator interface {
	Generate(ctx context.Context, prompt, styleHint string, onProgress func(models.GenerationProgress)) (jobID, mediaURL string, err error)
	Download(ctx context.Context, mediaURL, dir string) (string, error)
	Resolution() string
	Duration() string
}

type Synthesizer interface {
	Render(ctx context.Context, seed, dir string) (string, error)
	Options() synth.Options
}

type ArtifactStore interface {
	Persist(ctx context.Context, sourcePath, prompt string, interp *models.Interpretation,
		remoteURL string, palette [3]models.Color) (models.DreamArtifact, error)
	ResolveLocation(a models.DreamArtifact) string
}

// Watermarker stamps a downloaded video and returns the stamped file.
type Watermarker interface {
	Watermark(ctx context.Context, path string) (string, error)
}

type DreamLogger interface {
	Log(ctx context.Context, e dreamlog.Entry) (models.RemoteDream, error)
}

type OfflineLog interface {
	Add(ctx context.Context, rec models.DreamLogRecord) (int64, error)
}

type Archiver interface {
	UploadFile(ctx context.Context, path string) (string, error)
}

// Deps are the collaborators. Video, Watermark, DreamLog, Offline and
// Archive are optional.
type Deps struct {
	Ledger      Ledger
	Interpreter Interpreter
	Video       VideoGenerator
	Synth       Synthesizer
	Artifacts   ArtifactStore
	Watermark   Watermarker
	DreamLog    DreamLogger
	Offline     OfflineLog
	Archive     Archiver
	Logger      logging.Logger
	Metrics     *metrics.Metrics
}

type Config struct {
	Cost               int
	DisableRemoteVideo bool
	// WorkDir holds downloads and renders until they are persisted.
	WorkDir           string
	BackgroundTimeout time.Duration
}

type Orchestrator struct {
	deps    Deps
	cfg     Config
	logger  logging.Logger
	metrics *metrics.Metrics

	wg sync.WaitGroup
}

func New(deps Deps, cfg Config) *Orchestrator {
	if cfg.Cost <= 0 {
		cfg.Cost = models.CreditCostPerVideo
	}
	if cfg.BackgroundTimeout <= 0 {
		cfg.BackgroundTimeout = DefaultBackgroundTimeout
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Orchestrator{
		deps:    deps,
		cfg:     cfg,
		logger:  logger.With("module", "orchestrator"),
		metrics: deps.Metrics,
	}
}

// ValidatePrompt trims prompt and checks it has enough user-perceived
// characters.
func ValidatePrompt(prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if uniseg.GraphemeClusterCount(prompt) < models.MinPromptLength {
		return "", ErrPromptTooShort
	}
	return prompt, nil
}

// media is a produced video waiting to be persisted.
type media struct {
	path       string
	remoteURL  string
	jobID      string
	resolution string
	duration   string
}

// Generate runs one generation. onProgress may be nil; it is called from
// the calling goroutine only.
func (o *Orchestrator) Generate(ctx context.Context, prompt string, onProgress ProgressFunc) (models.DreamArtifact, error) {
	prompt, err := ValidatePrompt(prompt)
	if err != nil {
		o.metrics.Generation(metrics.OutcomeRejected)
		return models.DreamArtifact{}, err
	}

	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			err = ErrCancelled
		}
		return models.DreamArtifact{}, err
	}

	debit, ok := o.deps.Ledger.Spend(ctx, o.cfg.Cost)
	if !ok {
		o.metrics.Generation(metrics.OutcomeRejected)
		return models.DreamArtifact{}, ErrInsufficientCredits
	}

	start := time.Now()
	a, interp, m, err := o.run(ctx, prompt, onProgress)
	o.metrics.GenerationDuration(time.Since(start))

	if err != nil {
		refunded := o.refund(ctx, debit)
		o.metrics.Generation(metrics.OutcomeFailed)
		if errors.Is(ctx.Err(), context.Canceled) {
			o.logger.Info(ctx, "generation cancelled", "error", err)
			err = ErrCancelled
		} else {
			o.logger.Error(ctx, "generation failed", "error", err)
		}
		if refunded {
			err = fmt.Errorf("%w (%w)", err, ErrCreditsRestored)
		}
		return models.DreamArtifact{}, err
	}

	if m.remoteURL != "" {
		o.metrics.Generation(metrics.OutcomeRemote)
	} else {
		o.metrics.Generation(metrics.OutcomeFallback)
	}
	o.logger.Info(ctx, "generation finished", "artifact_id", a.ID, "fallback", m.remoteURL == "")

	o.background(ctx, a, interp, m)
	return a, nil
}

// Interpret returns only the interpretation. It costs no credits.
func (o *Orchestrator) Interpret(ctx context.Context, prompt string) (models.Interpretation, error) {
	prompt, err := ValidatePrompt(prompt)
	if err != nil {
		return models.Interpretation{}, err
	}
	interp, err := o.deps.Interpreter.Interpret(ctx, prompt)
	if err != nil {
		return models.Interpretation{}, fmt.Errorf("%w: %w", ErrInterpretationFailed, err)
	}
	return interp, nil
}

// Wait blocks until background logging of finished generations is done.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) run(ctx context.Context, prompt string, onProgress ProgressFunc) (models.DreamArtifact, models.Interpretation, media, error) {
	interp, err := o.deps.Interpreter.Interpret(ctx, prompt)
	if err != nil {
		return models.DreamArtifact{}, interp, media{}, fmt.Errorf("%w: %w", ErrInterpretationFailed, err)
	}

	m, err := o.produce(ctx, prompt, interp, onProgress)
	if err != nil {
		return models.DreamArtifact{}, interp, media{}, fmt.Errorf("%w: %w", ErrVideoUnavailable, err)
	}

	palette := synth.PaletteFor(seed(prompt, interp)).Hint()
	a, err := o.deps.Artifacts.Persist(ctx, m.path, prompt, &interp, m.remoteURL, palette)
	if err != nil {
		if rerr := os.Remove(m.path); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			o.logger.Warn(ctx, "failed to remove unpersisted media", "path", m.path, "error", rerr)
		}
		return models.DreamArtifact{}, interp, media{}, fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}
	return a, interp, m, nil
}

// seed drives the fallback animation and the palette hint.
func seed(prompt string, interp models.Interpretation) string {
	if s := strings.TrimSpace(interp.Summary); s != "" {
		return s
	}
	return prompt
}

func (o *Orchestrator) produce(ctx context.Context, prompt string, interp models.Interpretation, onProgress ProgressFunc) (media, error) {
	if o.deps.Video != nil && !o.cfg.DisableRemoteVideo {
		m, err := o.remote(ctx, prompt, interp, onProgress)
		if err == nil {
			return m, nil
		}
		if cerr := ctx.Err(); cerr != nil {
			return media{}, cerr
		}
		o.logger.Warn(ctx, "remote video failed, rendering locally", "error", err)
	}

	path, err := o.deps.Synth.Render(ctx, seed(prompt, interp), o.cfg.WorkDir)
	if err != nil {
		return media{}, err
	}
	o.metrics.FallbackRender()

	opts := o.deps.Synth.Options()
	return media{
		path:       path,
		resolution: fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		duration:   fmt.Sprintf("%gs", opts.Duration.Seconds()),
	}, nil
}

func (o *Orchestrator) remote(ctx context.Context, prompt string, interp models.Interpretation, onProgress ProgressFunc) (media, error) {
	progress := func(p models.GenerationProgress) {
		o.metrics.PollAttempt()
		if onProgress != nil {
			onProgress(p)
		}
	}

	jobID, url, err := o.deps.Video.Generate(ctx, prompt, interp.Advice, progress)
	if err != nil {
		return media{}, err
	}

	path, err := o.deps.Video.Download(ctx, url, o.cfg.WorkDir)
	if err != nil {
		return media{}, err
	}

	if o.deps.Watermark != nil {
		stamped, err := o.deps.Watermark.Watermark(ctx, path)
		switch {
		case err != nil:
			o.logger.Warn(ctx, "watermark failed, keeping original", "error", err)
		case stamped != path:
			if rerr := os.Remove(path); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
				o.logger.Warn(ctx, "failed to remove unstamped media", "path", path, "error", rerr)
			}
			path = stamped
		}
	}

	return media{
		path:       path,
		remoteURL:  url,
		jobID:      jobID,
		resolution: o.deps.Video.Resolution(),
		duration:   o.deps.Video.Duration(),
	}, nil
}

// refund reports whether credits went back to the user.
func (o *Orchestrator) refund(ctx context.Context, d ledger.Debit) bool {
	n := d.Refundable()
	if n == 0 {
		return false
	}
	// The refund must land even when the caller gave up.
	if err := o.deps.Ledger.Credit(context.WithoutCancel(ctx), n); err != nil {
		o.logger.Error(ctx, "refund failed", "amount", n, "error", err)
		return false
	}
	o.metrics.Refund()
	return true
}

// background fires the best-effort side effects of a finished generation.
// They run detached from ctx and only log their failures.
func (o *Orchestrator) background(ctx context.Context, a models.DreamArtifact, interp models.Interpretation, m media) {
	base := context.WithoutCancel(ctx)

	spawn := func(sink string, fn func(ctx context.Context) error) {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			bctx, cancel := context.WithTimeout(base, o.cfg.BackgroundTimeout)
			defer cancel()
			if err := fn(bctx); err != nil {
				o.metrics.BestEffortFailure(sink)
				o.logger.Warn(bctx, "best-effort write failed", "sink", sink, "artifact_id", a.ID, "error", err)
			}
		}()
	}

	if o.deps.DreamLog != nil {
		spawn("dreamlog", func(ctx context.Context) error {
			_, err := o.deps.DreamLog.Log(ctx, dreamlog.Entry{
				Artifact:       a,
				Interpretation: interp,
				GenerationID:   m.jobID,
				Resolution:     m.resolution,
				Duration:       m.duration,
			})
			return err
		})
	}

	if o.deps.Offline != nil {
		spawn("offline", func(ctx context.Context) error {
			_, err := o.deps.Offline.Add(ctx, models.DreamLogRecord{
				Prompt:         a.Prompt,
				Interpretation: models.Ptr(interp.Summary),
				RemoteURL:      a.RemoteVideoURL,
				CreatedAt:      a.CreatedAt,
			})
			return err
		})
	}

	if o.deps.Archive != nil {
		spawn("archive", func(ctx context.Context) error {
			url, err := o.deps.Archive.UploadFile(ctx, o.deps.Artifacts.ResolveLocation(a))
			if err == nil {
				o.logger.Debug(ctx, "media archived", "artifact_id", a.ID, "file", filepath.Base(a.MediaFileName), "url", url)
			}
			return err
		})
	}
}
