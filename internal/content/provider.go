// Package content supplies round prompts. The generative text service is an
// external collaborator behind a narrow contract; when it is unavailable or
// returns something malformed, round start degrades to a static prompt set
// instead of stalling.
package content

import (
	"context"

	"github.com/discoveredlive/gamecore/internal/models"
)

// Target is one clickable card on the round board.
type Target struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Position int    `json:"position"` // bingo grid position
}

// RoundPrompt is everything the engine needs to run one round.
type RoundPrompt struct {
	PromptText    string   `json:"prompt_text"`
	Category      string   `json:"category"`
	CorrectTarget Target   `json:"correct_target"`
	Distractors   []Target `json:"distractors"`
}

// PromptRequest identifies the themed prompt wanted for a round.
type PromptRequest struct {
	Industry    string `json:"industry"`
	Difficulty  string `json:"difficulty"`
	RoundNumber int    `json:"round_number"`
}

// Valid reports whether the prompt is usable for scoring: it needs a correct
// target with an on-grid position.
func (p *RoundPrompt) Valid() bool {
	return p != nil &&
		p.PromptText != "" &&
		p.CorrectTarget.ID != "" &&
		models.ValidBingoPosition(p.CorrectTarget.Position)
}

// PromptProvider produces prompts for rounds.
type PromptProvider interface {
	RoundPrompt(ctx context.Context, req PromptRequest) (*RoundPrompt, error)
}
