package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/ruya/internal/models"
	"golang.org/x/term"
)

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

const barWidth = 24

var stateLabels = map[models.RemoteState]string{
	models.StateQueued:     "queued",
	models.StateDreaming:   "dreaming",
	models.StateProcessing: "processing",
	models.StateCompleted:  "done",
	models.StateFailed:     "failed",
}

// progressPrinter renders generation progress. On a terminal it redraws a
// single line; otherwise it prints one line per update.
type progressPrinter struct {
	w      io.Writer
	inline bool
	drawn  bool
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	inline := false
	if f, ok := w.(*os.File); ok {
		inline = isTerminal(int(f.Fd()))
	}
	return &progressPrinter{w: w, inline: inline}
}

func (p *progressPrinter) update(gp models.GenerationProgress) {
	line := renderProgress(gp)
	if p.inline {
		fmt.Fprintf(p.w, "\r%s", line)
		p.drawn = true
		return
	}
	fmt.Fprintln(p.w, line)
}

// done ends an inline progress line.
func (p *progressPrinter) done() {
	if p.inline && p.drawn {
		fmt.Fprintln(p.w)
		p.drawn = false
	}
}

func renderProgress(gp models.GenerationProgress) string {
	pct := gp.Percentage()
	filled := int(pct * barWidth)
	bar := strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled)

	label, ok := stateLabels[gp.State]
	if !ok {
		label = string(gp.State)
	}
	return fmt.Sprintf("[%s] %3.0f%% %-10s ~%ds", bar, pct*100, label, gp.EstimatedSecondsRemaining)
}
