package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/ruya/internal/artifacts"
	"github.com/dmitrijs2005/ruya/internal/core"
	"github.com/dmitrijs2005/ruya/internal/models"
	"github.com/dmitrijs2005/ruya/internal/orchestrator"
	"github.com/dmitrijs2005/ruya/internal/purchase"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	balance   models.CreditBalance
	err       error
	artifact  models.DreamArtifact
	progress  []models.GenerationProgress
	history   []models.DreamArtifact
	logs      []models.DreamLogRecord
	logsLimit int
	genCtx    context.Context
}

func (f *fakeService) Balance(context.Context) (models.CreditBalance, error) { return f.balance, f.err }
func (f *fakeService) Packages(context.Context) ([]core.Offer, error) {
	return []core.Offer{
		{Package: models.Catalog[0], DisplayPrice: "₺69,99"},
		{Package: models.Catalog[1], DisplayPrice: "₺129,99"},
	}, f.err
}
func (f *fakeService) Purchase(_ context.Context, id string) (models.CreditBalance, error) {
	if f.err != nil {
		return models.CreditBalance{}, f.err
	}
	pkg, _ := models.PackageByID(id)
	f.balance.Purchased += pkg.Credits
	return f.balance, nil
}
func (f *fakeService) Restore(context.Context) (int, error) { return 1, f.err }
func (f *fakeService) History(context.Context) ([]models.DreamArtifact, error) {
	return f.history, f.err
}
func (f *fakeService) Delete(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	if _, err := uuid.Parse(id); err != nil {
		return core.ErrInvalidID
	}
	return artifacts.ErrNotFound
}
func (f *fakeService) OfflineLogs(_ context.Context, limit int) ([]models.DreamLogRecord, error) {
	f.logsLimit = limit
	return f.logs, f.err
}
func (f *fakeService) Interpret(context.Context, string) (models.Interpretation, error) {
	return models.Interpretation{Summary: "Özet", Advice: "Öneri"}, f.err
}
func (f *fakeService) Generate(ctx context.Context, _ string, onProgress orchestrator.ProgressFunc) (models.DreamArtifact, error) {
	f.genCtx = ctx
	for _, p := range f.progress {
		onProgress(p)
	}
	return f.artifact, f.err
}

func newTestApp(svc core.Service) (*App, *bytes.Buffer) {
	var out bytes.Buffer
	a := NewApp(svc, &out)
	a.interruptible = func(ctx context.Context) (context.Context, context.CancelFunc) {
		return context.WithCancel(ctx)
	}
	return a, &out
}

func TestApp_Balance(t *testing.T) {
	a, out := newTestApp(&fakeService{balance: models.CreditBalance{Purchased: 5, DemoUsed: 2, DemoLimit: 3}})

	require.NoError(t, a.Balance(context.Background()))
	assert.Contains(t, out.String(), "Purchased credits: 5")
	assert.Contains(t, out.String(), "Demo credits left: 1 of 3")
	assert.Contains(t, out.String(), "Videos you can make: 3")
	assert.Equal(t, "(credits 5, demo 1)", a.status(context.Background()))

	a, _ = newTestApp(&fakeService{err: errors.New("down")})
	assert.Equal(t, "(offline)", a.status(context.Background()))
}

func TestApp_PackagesAndBuy(t *testing.T) {
	svc := &fakeService{}
	a, out := newTestApp(svc)
	ctx := context.Background()

	require.NoError(t, a.Packages(ctx))
	assert.Contains(t, out.String(), "ruya.credits.orbit")
	assert.Contains(t, out.String(), "₺129,99")
	assert.Contains(t, out.String(), "(12 videos)")

	require.NoError(t, a.Buy(ctx, "ruya.credits.orbit"))
	assert.Contains(t, out.String(), "Purchased credits: 25")

	svc.err = purchase.ErrPending
	require.ErrorIs(t, a.Buy(ctx, "ruya.credits.orbit"), purchase.ErrPending)
	assert.Contains(t, out.String(), "pending approval")

	svc.err = purchase.ErrNoPurchasesToRestore
	require.Error(t, a.Restore(ctx))
	assert.Contains(t, out.String(), "No previous purchases")
}

func TestApp_DreamPrintsProgressAndResult(t *testing.T) {
	id := uuid.New()
	svc := &fakeService{
		artifact: models.DreamArtifact{
			ID:                    id,
			MediaFileName:         id.String() + ".gif",
			InterpretationSummary: models.Ptr("Deniz huzuru simgeler."),
		},
		progress: []models.GenerationProgress{
			{Attempt: 1, MaxAttempts: 10, State: models.StateQueued, EstimatedSecondsRemaining: 27},
			{Attempt: 2, MaxAttempts: 10, State: models.StateCompleted, EstimatedSecondsRemaining: 24},
		},
	}
	a, out := newTestApp(svc)
	a.WithMediaResolver(func(a models.DreamArtifact) string { return "/vault/" + a.MediaFileName })

	require.NoError(t, a.Dream(context.Background(), "denizin üstünde yürüdüm"))

	text := out.String()
	assert.Contains(t, text, "queued")
	assert.Contains(t, text, "100%")
	assert.Contains(t, text, "Dream saved: "+id.String())
	assert.Contains(t, text, "Deniz huzuru simgeler.")
	assert.Contains(t, text, "/vault/"+id.String()+".gif")
	assert.Contains(t, text, "(rendered locally)")

	require.Error(t, svc.genCtx.Err(), "generation context is released afterwards")
}

func TestApp_DreamErrors(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{orchestrator.ErrPromptTooShort, "more detail"},
		{orchestrator.ErrInsufficientCredits, "enough credits"},
		{orchestrator.ErrCancelled, "cancelled"},
		{orchestrator.ErrVideoUnavailable, "try again"},
		{fmt.Errorf("%w (%w)", orchestrator.ErrVideoUnavailable, orchestrator.ErrCreditsRestored), "credits have been restored"},
	}
	for _, tt := range tests {
		a, out := newTestApp(&fakeService{err: tt.err})
		require.ErrorIs(t, a.Dream(context.Background(), "x"), tt.err)
		assert.Contains(t, out.String(), tt.want)
	}
}

func TestApp_HistoryDeleteLogs(t *testing.T) {
	svc := &fakeService{
		history: []models.DreamArtifact{{ID: uuid.New(), Prompt: strings.Repeat("ay ", 40), CreatedAt: time.Now()}},
		logs:    []models.DreamLogRecord{{ID: 3, Prompt: "yıldızlar", CreatedAt: time.Now()}},
	}
	a, out := newTestApp(svc)
	ctx := context.Background()

	require.NoError(t, a.History(ctx))
	assert.Contains(t, out.String(), "…")

	require.ErrorIs(t, a.Delete(ctx, uuid.NewString()), artifacts.ErrNotFound)
	assert.Contains(t, out.String(), "No such dream.")
	require.ErrorIs(t, a.Delete(ctx, "nope"), core.ErrInvalidID)
	assert.Contains(t, out.String(), "Not a dream id: nope")

	require.NoError(t, a.Logs(ctx, "2"))
	assert.Equal(t, 2, svc.logsLimit)
	assert.Contains(t, out.String(), "#3")
	require.Error(t, a.Logs(ctx, "-1"))

	svc.history = nil
	out.Reset()
	require.NoError(t, a.History(ctx))
	assert.Contains(t, out.String(), "No dreams yet.")
}

func TestApp_Interpret(t *testing.T) {
	a, out := newTestApp(&fakeService{})
	require.NoError(t, a.Interpret(context.Background(), "bir kuş gördüm"))
	assert.Equal(t, "Özet\n\nÖneri\n", out.String())
}

func TestApp_Run(t *testing.T) {
	silence(t)
	svc := &fakeService{balance: models.CreditBalance{Purchased: 2, DemoLimit: 3}}
	a, out := newTestApp(svc)

	a.Run(context.Background(), strings.NewReader("balance\nexit\n"))
	assert.Contains(t, out.String(), "Welcome to Ruya")
	assert.Contains(t, out.String(), "Purchased credits: 2")
}
