// Package models holds the data types shared by the dream core components.
package models

const (
	// CreditCostPerVideo is the number of credits one generation consumes.
	CreditCostPerVideo = 2
	// DemoLimit is the trial allowance, in credits, granted to every install.
	DemoLimit = 3
	// MinPromptLength is the minimum prompt length in grapheme clusters.
	MinPromptLength = 8
)

// CreditBalance is a snapshot of the ledger counters.
type CreditBalance struct {
	Purchased int `json:"purchased"`
	DemoUsed  int `json:"demo_used"`
	DemoLimit int `json:"demo_limit"`
}

func (b CreditBalance) DemoRemaining() int {
	return max(0, b.DemoLimit-b.DemoUsed)
}

// Available is the total number of credits that can still be spent.
func (b CreditBalance) Available() int {
	return b.Purchased + b.DemoRemaining()
}

// GenerationRequest is the ephemeral input of a single generation.
type GenerationRequest struct {
	Prompt string
	Cost   int
}
