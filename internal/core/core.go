package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/ruya/internal/archive"
	"github.com/dmitrijs2005/ruya/internal/artifacts"
	"github.com/dmitrijs2005/ruya/internal/config"
	"github.com/dmitrijs2005/ruya/internal/cryptox"
	"github.com/dmitrijs2005/ruya/internal/dreamlog"
	"github.com/dmitrijs2005/ruya/internal/filex"
	"github.com/dmitrijs2005/ruya/internal/interpret"
	"github.com/dmitrijs2005/ruya/internal/ledger"
	"github.com/dmitrijs2005/ruya/internal/logging"
	"github.com/dmitrijs2005/ruya/internal/metrics"
	"github.com/dmitrijs2005/ruya/internal/models"
	"github.com/dmitrijs2005/ruya/internal/orchestrator"
	"github.com/dmitrijs2005/ruya/internal/purchase"
	"github.com/dmitrijs2005/ruya/internal/repositories"
	"github.com/dmitrijs2005/ruya/internal/securestore"
	"github.com/dmitrijs2005/ruya/internal/synth"
	"github.com/dmitrijs2005/ruya/internal/videogen"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	databaseFile   = "ruya.db"
	deviceKeyFile  = "device.key"
	artifactsDir   = "dreams"
	workDir        = "work"
	defaultLogsMax = 50
)

var ErrInvalidID = errors.New("invalid dream id")

// Core is the in-process Service.
type Core struct {
	logger    logging.Logger
	metrics   *metrics.Metrics
	repos     *repositories.Repositories
	ledger    *ledger.Ledger
	artifacts *artifacts.Repository
	store     *purchase.SandboxStore
	purchases *purchase.Manager
	orch      *orchestrator.Orchestrator
	dreamDB   *sql.DB

	interpretReady bool
}

var _ Service = (*Core)(nil)

// New opens the data directory in cfg.DataDir and builds every component.
// Remote collaborators without credentials are left out; generation then
// falls back to local rendering and logging stays local.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger, reg prometheus.Registerer) (*Core, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	dataDir, err := filex.EnsureDir(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	c := &Core{logger: logger.With("module", "core")}
	if reg != nil {
		c.metrics = metrics.New(reg)
	}

	ok := false
	defer func() {
		if !ok {
			_ = c.Close()
		}
	}()

	c.repos, err = repositories.InitDatabase(ctx, filepath.Join(dataDir, databaseFile))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	secret, err := deviceSecret(cfg.DeviceSecret, dataDir)
	if err != nil {
		return nil, err
	}
	sealed, err := securestore.OpenSealed(ctx, c.repos.DB, secret)
	cryptox.Wipe(secret)
	if err != nil {
		return nil, fmt.Errorf("open secure store: %w", err)
	}

	c.ledger, err = ledger.New(ctx, sealed, models.DemoLimit, logger)
	if err != nil {
		return nil, err
	}
	c.ledger.OnChange(c.metrics.ObserveBalance)
	c.metrics.ObserveBalance(c.ledger.Balance())

	c.artifacts, err = artifacts.Open(filepath.Join(dataDir, artifactsDir), logger)
	if err != nil {
		return nil, err
	}

	work, err := filex.EnsureDir(filepath.Join(dataDir, workDir))
	if err != nil {
		return nil, err
	}

	c.store, err = purchase.NewSandboxStore(nil, models.Catalog)
	if err != nil {
		return nil, err
	}
	c.purchases = purchase.NewManager(c.store, c.ledger, c.repos.Transactions, models.Catalog, logger, c.metrics)

	deps := orchestrator.Deps{
		Ledger:    c.ledger,
		Synth:     synth.New(synth.DefaultOptions(), logger),
		Artifacts: c.artifacts,
		Offline:   c.repos.DreamLogs,
		Logger:    logger,
		Metrics:   c.metrics,
	}

	interp, err := newInterpreter(cfg)
	if err != nil {
		return nil, err
	}
	deps.Interpreter = interp
	_, c.interpretReady = interp.(*interpret.Client)
	if !c.interpretReady {
		c.logger.Warn(ctx, "interpretation disabled, generations will be rejected")
	}

	if vc, err := videogen.New(videogen.Config{
		BaseURL:      cfg.VideoBaseURL,
		APIKey:       cfg.LumaKey,
		Model:        cfg.VideoModel,
		Resolution:   cfg.VideoResolution,
		Duration:     cfg.VideoDuration,
		PollInterval: cfg.PollInterval,
		MaxAttempts:  cfg.MaxAttempts,
	}); err == nil {
		deps.Video = vc
	} else if !errors.Is(err, videogen.ErrServiceUnavailable) {
		return nil, err
	} else {
		c.logger.Info(ctx, "video generation disabled, rendering locally")
	}

	if deps.DreamLog, err = c.dreamLogger(ctx, cfg); err != nil {
		return nil, err
	}

	if a, err := archive.New(ctx, archive.Config{
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	}); err == nil {
		deps.Archive = a
	} else if !errors.Is(err, archive.ErrDisabled) {
		return nil, fmt.Errorf("media archive: %w", err)
	}

	c.orch = orchestrator.New(deps, orchestrator.Config{
		DisableRemoteVideo: cfg.DisableRemoteVideo,
		WorkDir:            work,
		BackgroundTimeout:  cfg.BackgroundTimeout,
	})

	ok = true
	return c, nil
}

// unavailableInterpreter stands in when no API key is configured so every
// generation fails before any remote call and refunds its debit.
type unavailableInterpreter struct{}

func (unavailableInterpreter) Interpret(context.Context, string) (models.Interpretation, error) {
	return models.Interpretation{}, interpret.ErrServiceUnavailable
}

func newInterpreter(cfg *config.Config) (orchestrator.Interpreter, error) {
	method, err := interpret.ParseMethod(cfg.InterpretMethod)
	if err != nil {
		return nil, err
	}
	ic, err := interpret.New(interpret.Config{
		BaseURL: cfg.InterpretBaseURL,
		APIKey:  cfg.OpenAIKey,
		Model:   cfg.InterpretModel,
		Method:  method,
	})
	if errors.Is(err, interpret.ErrServiceUnavailable) {
		return unavailableInterpreter{}, nil
	}
	if err != nil {
		return nil, err
	}
	return ic, nil
}

// dreamLogger prefers a direct Postgres DSN over the REST endpoint.
func (c *Core) dreamLogger(ctx context.Context, cfg *config.Config) (orchestrator.DreamLogger, error) {
	if cfg.DreamLogDSN != "" {
		db, err := dreamlog.OpenPostgres(ctx, cfg.DreamLogDSN)
		if err != nil {
			return nil, fmt.Errorf("dream log database: %w", err)
		}
		c.dreamDB = db
		return dreamlog.NewLogger(dreamlog.NewPostgresSink(db), nil), nil
	}

	var tokens dreamlog.TokenSource
	if cfg.SupabaseAccessToken != "" {
		tokens = dreamlog.StaticToken(cfg.SupabaseAccessToken)
	}
	rc, err := dreamlog.NewRESTClient(dreamlog.Config{
		URL:     cfg.SupabaseURL,
		AnonKey: cfg.SupabaseAnonKey,
		Tokens:  tokens,
	}, c.logger)
	if errors.Is(err, dreamlog.ErrNotConfigured) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return dreamlog.NewLogger(rc, rc.UserID), nil
}

// deviceSecret returns configured, or the hex secret stored in dir,
// creating it on first start.
func deviceSecret(configured, dir string) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}

	path := filepath.Join(dir, deviceKeyFile)
	data, err := os.ReadFile(path)
	if err == nil {
		return []byte(strings.TrimSpace(string(data))), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read device key: %w", err)
	}

	secret, err := cryptox.RandomHex(32)
	if err != nil {
		return nil, err
	}
	if err := filex.WriteFileAtomic(path, []byte(secret), 0o600); err != nil {
		return nil, fmt.Errorf("write device key: %w", err)
	}
	return []byte(secret), nil
}

// Start applies transactions that finished while the process was down and
// then listens for store updates until ctx is done.
func (c *Core) Start(ctx context.Context) {
	if err := c.purchases.LoadProducts(ctx); err != nil {
		c.logger.Warn(ctx, "loading products failed", "error", err)
	}
	c.Reconcile(ctx)
	go c.purchases.Listen(ctx)
}

// Reconcile runs one unfinished transaction sweep.
func (c *Core) Reconcile(ctx context.Context) {
	n, err := c.purchases.ReconcileUnfinished(ctx)
	if err != nil {
		c.logger.Warn(ctx, "reconcile failed", "error", err)
		return
	}
	if n > 0 {
		c.logger.Info(ctx, "reconciled unfinished transactions", "count", n)
	}
}

// Sandbox exposes the local store so callers can approve deferred
// purchases or simulate an interrupted one.
func (c *Core) Sandbox() *purchase.SandboxStore { return c.store }

// MediaPath is the absolute location of a's media file.
func (c *Core) MediaPath(a models.DreamArtifact) string {
	return c.artifacts.ResolveLocation(a)
}

func (c *Core) Balance(context.Context) (models.CreditBalance, error) {
	return c.ledger.Balance(), nil
}

func (c *Core) Packages(ctx context.Context) ([]Offer, error) {
	if err := c.purchases.LoadProducts(ctx); err != nil {
		c.logger.Warn(ctx, "loading products failed, showing fallback prices", "error", err)
	}
	pkgs := c.purchases.Packages()
	out := make([]Offer, 0, len(pkgs))
	for _, p := range pkgs {
		out = append(out, Offer{Package: p, DisplayPrice: c.purchases.DisplayPrice(p)})
	}
	return out, nil
}

func (c *Core) Purchase(ctx context.Context, productID string) (models.CreditBalance, error) {
	pkg, ok := models.PackageByID(productID)
	if !ok {
		return models.CreditBalance{}, fmt.Errorf("%w: %s", purchase.ErrProductNotFound, productID)
	}
	if err := c.purchases.Purchase(ctx, pkg); err != nil {
		return models.CreditBalance{}, err
	}
	return c.ledger.Balance(), nil
}

func (c *Core) Restore(ctx context.Context) (int, error) {
	return c.purchases.RestorePurchases(ctx)
}

func (c *Core) History(context.Context) ([]models.DreamArtifact, error) {
	return c.artifacts.List(), nil
}

func (c *Core) Delete(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return c.artifacts.Delete(ctx, uid)
}

func (c *Core) OfflineLogs(ctx context.Context, limit int) ([]models.DreamLogRecord, error) {
	if limit <= 0 {
		limit = defaultLogsMax
	}
	return c.repos.DreamLogs.Latest(ctx, limit)
}

func (c *Core) Interpret(ctx context.Context, prompt string) (models.Interpretation, error) {
	return c.orch.Interpret(ctx, prompt)
}

// Generate rejects work up front when interpretation is not configured so
// no credits are taken for a generation that cannot succeed.
func (c *Core) Generate(ctx context.Context, prompt string, onProgress orchestrator.ProgressFunc) (models.DreamArtifact, error) {
	if !c.interpretReady {
		if _, err := orchestrator.ValidatePrompt(prompt); err != nil {
			return models.DreamArtifact{}, err
		}
		return models.DreamArtifact{}, fmt.Errorf("%w: %w", orchestrator.ErrInterpretationFailed, interpret.ErrServiceUnavailable)
	}
	return c.orch.Generate(ctx, prompt, onProgress)
}

// Close waits for background logging and releases the databases.
func (c *Core) Close() error {
	if c.orch != nil {
		c.orch.Wait()
	}
	var errs []error
	if c.dreamDB != nil {
		errs = append(errs, c.dreamDB.Close())
	}
	if c.repos != nil {
		errs = append(errs, c.repos.Close())
	}
	return errors.Join(errs...)
}
