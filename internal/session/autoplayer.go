package session

import (
	"math/rand"
	"sync"
	"time"

	"github.com/discoveredlive/gamecore/internal/content"
)

// AutoPlayStrategy decides how a simulated participant answers a round:
// which target it clicks and how long it pretends to think first.
type AutoPlayStrategy interface {
	Decide(prompt *content.RoundPrompt, targets []content.Target, timeLimit time.Duration) (targetID string, delay time.Duration)
}

// RandomAutoPlayer answers correctly with a fixed probability and picks a
// random distractor otherwise, with a response delay spread across the
// earlier part of the round window so simulated players never race the
// deadline.
type RandomAutoPlayer struct {
	Accuracy float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomAutoPlayer creates an autoplayer with the given accuracy in
// [0, 1].
func NewRandomAutoPlayer(accuracy float64, seed int64) *RandomAutoPlayer {
	return &RandomAutoPlayer{
		Accuracy: accuracy,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// AutoPlayerForDifficulty maps a room difficulty to a tuned autoplayer.
// Harder rooms get sharper simulated opponents.
func AutoPlayerForDifficulty(difficulty string) *RandomAutoPlayer {
	accuracy := 0.6
	switch difficulty {
	case "easy":
		accuracy = 0.45
	case "hard":
		accuracy = 0.8
	}
	return NewRandomAutoPlayer(accuracy, time.Now().UnixNano())
}

func (a *RandomAutoPlayer) Decide(prompt *content.RoundPrompt, targets []content.Target, timeLimit time.Duration) (string, time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Answer somewhere in the first 20-70% of the window.
	window := timeLimit * 7 / 10
	minDelay := timeLimit * 2 / 10
	delay := minDelay + time.Duration(a.rng.Int63n(int64(window-minDelay)+1))

	if a.rng.Float64() < a.Accuracy {
		return prompt.CorrectTarget.ID, delay
	}
	wrong := make([]content.Target, 0, len(targets))
	for _, t := range targets {
		if t.ID != prompt.CorrectTarget.ID {
			wrong = append(wrong, t)
		}
	}
	if len(wrong) == 0 {
		return prompt.CorrectTarget.ID, delay
	}
	return wrong[a.rng.Intn(len(wrong))].ID, delay
}
