package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/ruya/internal/artifacts"
	"github.com/dmitrijs2005/ruya/internal/core"
	"github.com/dmitrijs2005/ruya/internal/logging"
	"github.com/dmitrijs2005/ruya/internal/models"
	"github.com/dmitrijs2005/ruya/internal/orchestrator"
	"github.com/dmitrijs2005/ruya/internal/purchase"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fakeService struct {
	mu        sync.Mutex
	balance   models.CreditBalance
	artifacts []models.DreamArtifact
	progress  []models.GenerationProgress
	err       error
	block     bool
	cancelled chan struct{}
	prompts   []string
}

func (f *fakeService) Balance(context.Context) (models.CreditBalance, error) { return f.balance, f.err }

func (f *fakeService) Packages(context.Context) ([]core.Offer, error) {
	out := make([]core.Offer, 0, len(models.Catalog))
	for _, p := range models.Catalog {
		out = append(out, core.Offer{Package: p, DisplayPrice: "$" + p.ProductID})
	}
	return out, f.err
}

func (f *fakeService) Purchase(_ context.Context, productID string) (models.CreditBalance, error) {
	if f.err != nil {
		return models.CreditBalance{}, f.err
	}
	pkg, _ := models.PackageByID(productID)
	f.balance.Purchased += pkg.Credits
	return f.balance, nil
}

func (f *fakeService) Restore(context.Context) (int, error) { return 2, f.err }

func (f *fakeService) History(context.Context) ([]models.DreamArtifact, error) {
	return f.artifacts, f.err
}

func (f *fakeService) Delete(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	for i, a := range f.artifacts {
		if a.ID.String() == id {
			f.artifacts = append(f.artifacts[:i], f.artifacts[i+1:]...)
			return nil
		}
	}
	return artifacts.ErrNotFound
}

func (f *fakeService) OfflineLogs(_ context.Context, limit int) ([]models.DreamLogRecord, error) {
	return []models.DreamLogRecord{{ID: int64(limit), Prompt: "p"}}, f.err
}

func (f *fakeService) Interpret(_ context.Context, prompt string) (models.Interpretation, error) {
	if _, err := orchestrator.ValidatePrompt(prompt); err != nil {
		return models.Interpretation{}, err
	}
	return models.Interpretation{Summary: "s", Advice: "a", RelationshipInsight: "r"}, f.err
}

func (f *fakeService) Generate(ctx context.Context, prompt string, onProgress orchestrator.ProgressFunc) (models.DreamArtifact, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	if _, err := orchestrator.ValidatePrompt(prompt); err != nil {
		return models.DreamArtifact{}, err
	}
	if f.block {
		<-ctx.Done()
		close(f.cancelled)
		return models.DreamArtifact{}, orchestrator.ErrCancelled
	}
	for _, p := range f.progress {
		onProgress(p)
	}
	if f.err != nil {
		return models.DreamArtifact{}, f.err
	}
	return f.artifacts[0], nil
}

func sampleArtifact() models.DreamArtifact {
	return models.DreamArtifact{
		ID:                    uuid.MustParse("7a1f5c9e-3b7d-4f43-9d2e-5c0b7e2a9f11"),
		Prompt:                "Gece yarısı denizde yürüdüm",
		CreatedAt:             time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
		MediaFileName:         "7a1f5c9e-3b7d-4f43-9d2e-5c0b7e2a9f11.mp4",
		Palette:               [3]models.Color{{R: 0.1, G: 0.2, B: 0.3}, {R: 0.5}, {B: 1}},
		InterpretationSummary: models.Ptr("özet"),
		RemoteVideoURL:        models.Ptr("https://cdn.example/v.mp4"),
	}
}

func startServer(t *testing.T, svc core.Service) *Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := NewServer("bufnet", svc, logging.Nop()).NewGRPCServer()
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_UnaryRoundTrip(t *testing.T) {
	svc := &fakeService{
		balance:   models.CreditBalance{Purchased: 4, DemoUsed: 2, DemoLimit: 3},
		artifacts: []models.DreamArtifact{sampleArtifact()},
	}
	c := startServer(t, svc)
	ctx := context.Background()

	b, err := c.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, svc.balance, b)

	offers, err := c.Packages(ctx)
	require.NoError(t, err)
	require.Len(t, offers, len(models.Catalog))
	assert.Equal(t, models.Catalog[1], offers[1].Package)
	assert.Equal(t, "$ruya.credits.orbit", offers[1].DisplayPrice)

	b, err = c.Purchase(ctx, "ruya.credits.orbit")
	require.NoError(t, err)
	assert.Equal(t, 29, b.Purchased)

	n, err := c.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	history, err := c.History(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.DreamArtifact{sampleArtifact()}, history)

	logs, err := c.OfflineLogs(ctx, 7)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, int64(7), logs[0].ID)

	interp, err := c.Interpret(ctx, "rüyamda uçuyordum")
	require.NoError(t, err)
	assert.Equal(t, "a", interp.Advice)

	require.NoError(t, c.Delete(ctx, sampleArtifact().ID.String()))
	history, err = c.History(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestClient_ErrorsMapBack(t *testing.T) {
	svc := &fakeService{}
	c := startServer(t, svc)
	ctx := context.Background()

	_, err := c.Interpret(ctx, "kısa")
	require.ErrorIs(t, err, orchestrator.ErrPromptTooShort)

	err = c.Delete(ctx, uuid.NewString())
	require.ErrorIs(t, err, artifacts.ErrNotFound)

	svc.err = purchase.ErrPending
	_, err = c.Purchase(ctx, "ruya.credits.spark")
	require.ErrorIs(t, err, purchase.ErrPending)

	svc.err = orchestrator.ErrInsufficientCredits
	_, err = c.Generate(ctx, "Gece yarısı denizde yürüdüm", nil)
	require.ErrorIs(t, err, orchestrator.ErrInsufficientCredits)

	svc.err = errors.New("disk on fire")
	_, err = c.Balance(ctx)
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestClient_GenerateStreamsProgress(t *testing.T) {
	svc := &fakeService{
		artifacts: []models.DreamArtifact{sampleArtifact()},
		progress: []models.GenerationProgress{
			{Attempt: 1, MaxAttempts: 120, State: models.StateQueued, EstimatedSecondsRemaining: 27},
			{Attempt: 2, MaxAttempts: 120, State: models.StateDreaming, EstimatedSecondsRemaining: 24},
			{Attempt: 3, MaxAttempts: 120, State: models.StateCompleted, EstimatedSecondsRemaining: 21},
		},
	}
	c := startServer(t, svc)

	var got []models.GenerationProgress
	a, err := c.Generate(context.Background(), "Gece yarısı denizde yürüdüm", func(p models.GenerationProgress) {
		got = append(got, p)
	})
	require.NoError(t, err)
	assert.Equal(t, sampleArtifact(), a)
	assert.Equal(t, svc.progress, got)
}

func TestClient_GenerateCancel(t *testing.T) {
	svc := &fakeService{block: true, cancelled: make(chan struct{})}
	c := startServer(t, svc)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		// Give the call time to reach the server.
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := c.Generate(ctx, "Gece yarısı denizde yürüdüm", nil)
	require.ErrorIs(t, err, orchestrator.ErrCancelled)
	require.ErrorIs(t, err, context.Canceled)

	select {
	case <-svc.cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("server side generation was not cancelled")
	}
}

func TestStatus_CarriesRestoredCredits(t *testing.T) {
	refunded := fmt.Errorf("%w (%w)", orchestrator.ErrVideoUnavailable, orchestrator.ErrCreditsRestored)
	back := fromStatus(toStatus(refunded))
	require.ErrorIs(t, back, orchestrator.ErrVideoUnavailable)
	require.ErrorIs(t, back, orchestrator.ErrCreditsRestored)

	cancelled := fmt.Errorf("%w (%w)", orchestrator.ErrCancelled, orchestrator.ErrCreditsRestored)
	back = fromStatus(toStatus(cancelled))
	require.ErrorIs(t, back, orchestrator.ErrCancelled)
	require.ErrorIs(t, back, orchestrator.ErrCreditsRestored)

	back = fromStatus(toStatus(orchestrator.ErrVideoUnavailable))
	require.ErrorIs(t, back, orchestrator.ErrVideoUnavailable)
	assert.NotErrorIs(t, back, orchestrator.ErrCreditsRestored)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"prompt", orchestrator.ErrPromptTooShort, codes.InvalidArgument},
		{"credits", orchestrator.ErrInsufficientCredits, codes.FailedPrecondition},
		{"cancelled", orchestrator.ErrCancelled, codes.Canceled},
		{"interpretation", errors.Join(orchestrator.ErrInterpretationFailed, errors.New("503")), codes.Unavailable},
		{"video", orchestrator.ErrVideoUnavailable, codes.Unavailable},
		{"persist", orchestrator.ErrPersistenceFailed, codes.Unavailable},
		{"dream", artifacts.ErrNotFound, codes.NotFound},
		{"id", core.ErrInvalidID, codes.InvalidArgument},
		{"product", purchase.ErrProductNotFound, codes.NotFound},
		{"verification", purchase.ErrVerificationFailed, codes.PermissionDenied},
		{"purchase cancelled", purchase.ErrCancelled, codes.Aborted},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"other", errors.New("x"), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := toStatus(tt.err)
			assert.Equal(t, tt.code, status.Code(st))

			back := fromStatus(st)
			if tt.code == codes.Internal {
				assert.Equal(t, st, back)
				return
			}
			for _, m := range mappings {
				if errors.Is(tt.err, m.err) {
					assert.ErrorIs(t, back, m.err)
					break
				}
			}
		})
	}

	assert.NoError(t, toStatus(nil))
	assert.NoError(t, fromStatus(nil))
}

func TestServer_RunStopsOnContextCancel(t *testing.T) {
	srv := NewServer("127.0.0.1:0", &fakeService{}, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestServer_RunReturnsErrorOnBadAddress(t *testing.T) {
	srv := NewServer("127.0.0.1:99999", &fakeService{}, logging.Nop())
	require.Error(t, srv.Run(context.Background()))
}
