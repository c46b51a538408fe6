package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/dmitrijs2005/ruya/internal/artifacts"
	"github.com/dmitrijs2005/ruya/internal/core"
	"github.com/dmitrijs2005/ruya/internal/models"
	"github.com/dmitrijs2005/ruya/internal/orchestrator"
	"github.com/dmitrijs2005/ruya/internal/purchase"
)

const statusTimeout = 3 * time.Second

type App struct {
	svc core.Service
	out io.Writer
	// media resolves a local file path for an artifact when the core runs
	// in-process.
	media func(models.DreamArtifact) string
	// interruptible derives the context of one generation so Ctrl+C cancels
	// it without leaving the REPL.
	interruptible func(ctx context.Context) (context.Context, context.CancelFunc)
}

var _ execIface = (*App)(nil)

func NewApp(svc core.Service, out io.Writer) *App {
	return &App{
		svc: svc,
		out: out,
		interruptible: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		},
	}
}

// WithMediaResolver makes Dream and History print local media paths.
func (a *App) WithMediaResolver(fn func(models.DreamArtifact) string) *App {
	a.media = fn
	return a
}

// Run serves the REPL on in until EOF or exit.
func (a *App) Run(ctx context.Context, in io.Reader) {
	a.println("Welcome to Ruya, the dream studio (type 'help' for commands)")
	runREPL(ctx, a, func() string { return a.status(ctx) }, bufio.NewScanner(in))
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) status(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()
	b, err := a.svc.Balance(ctx)
	if err != nil {
		return "(offline)"
	}
	return fmt.Sprintf("(credits %d, demo %d)", b.Purchased, b.DemoRemaining())
}

func (a *App) Balance(ctx context.Context) error {
	b, err := a.svc.Balance(ctx)
	if err != nil {
		a.println("Balance unavailable:", err)
		return err
	}
	a.println(fmt.Sprintf("Purchased credits: %d", b.Purchased))
	a.println(fmt.Sprintf("Demo credits left: %d of %d", b.DemoRemaining(), b.DemoLimit))
	a.println(fmt.Sprintf("Videos you can make: %d", b.Available()/models.CreditCostPerVideo))
	return nil
}

func (a *App) Packages(ctx context.Context) error {
	offers, err := a.svc.Packages(ctx)
	if err != nil {
		a.println(purchase.UserMessage(err))
		return err
	}
	for _, o := range offers {
		mark := " "
		if o.Package.Highlight {
			mark = "*"
		}
		a.println(fmt.Sprintf("%s %-22s %-9s %3d credits (%d videos)  %s",
			mark, o.Package.ProductID, o.Package.Title, o.Package.Credits, o.Package.DisplayVideoCount(), o.DisplayPrice))
	}
	return nil
}

func (a *App) Buy(ctx context.Context, productID string) error {
	b, err := a.svc.Purchase(ctx, productID)
	if err != nil {
		a.println(purchase.UserMessage(err))
		return err
	}
	a.println(fmt.Sprintf("Purchase complete. Purchased credits: %d", b.Purchased))
	return nil
}

func (a *App) Restore(ctx context.Context) error {
	n, err := a.svc.Restore(ctx)
	if err != nil {
		a.println(purchase.UserMessage(err))
		return err
	}
	a.println(fmt.Sprintf("Restored %d purchase(s).", n))
	return nil
}

func (a *App) Dream(ctx context.Context, prompt string) error {
	ctx, stop := a.interruptible(ctx)
	defer stop()

	pp := newProgressPrinter(a.out)
	art, err := a.svc.Generate(ctx, prompt, pp.update)
	pp.done()
	if err != nil {
		a.println(orchestrator.UserMessage(err))
		return err
	}

	a.println("Dream saved:", art.ID.String())
	if art.InterpretationSummary != nil {
		a.println(*art.InterpretationSummary)
	}
	if a.media != nil {
		a.println("Media:", a.media(art))
	} else {
		a.println("Media:", art.MediaFileName)
	}
	if art.RemoteVideoURL == nil {
		a.println("(rendered locally)")
	}
	return nil
}

func (a *App) Interpret(ctx context.Context, prompt string) error {
	interp, err := a.svc.Interpret(ctx, prompt)
	if err != nil {
		a.println(orchestrator.UserMessage(err))
		return err
	}
	a.println(interp.Combined())
	return nil
}

func (a *App) History(ctx context.Context) error {
	items, err := a.svc.History(ctx)
	if err != nil {
		a.println("History unavailable:", err)
		return err
	}
	if len(items) == 0 {
		a.println("No dreams yet.")
		return nil
	}
	for _, it := range items {
		a.println(fmt.Sprintf("%s  %s  %s", it.ID, it.CreatedAt.Local().Format("2006-01-02 15:04"), preview(it.Prompt, 48)))
	}
	return nil
}

func (a *App) Delete(ctx context.Context, id string) error {
	err := a.svc.Delete(ctx, id)
	switch {
	case err == nil:
		a.println("Deleted.")
	case errors.Is(err, artifacts.ErrNotFound):
		a.println("No such dream.")
	case errors.Is(err, core.ErrInvalidID):
		a.println("Not a dream id:", id)
	default:
		a.println("Delete failed:", err)
	}
	return err
}

func (a *App) Logs(ctx context.Context, limit string) error {
	n := 0
	if limit != "" {
		v, err := strconv.Atoi(limit)
		if err != nil || v <= 0 {
			a.println("Usage: logs [n]")
			return fmt.Errorf("invalid limit %q", limit)
		}
		n = v
	}

	recs, err := a.svc.OfflineLogs(ctx, n)
	if err != nil {
		a.println("Log unavailable:", err)
		return err
	}
	for _, r := range recs {
		a.println(fmt.Sprintf("#%d  %s  %s", r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), preview(r.Prompt, 60)))
	}
	return nil
}

// preview shortens s to at most n runes.
func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
