package content

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStaticProviderCyclesDeck(t *testing.T) {
	p := NewStaticProvider()
	ctx := context.Background()

	seen := make(map[int]bool)
	for round := 1; round <= len(staticDeck); round++ {
		prompt, err := p.RoundPrompt(ctx, PromptRequest{RoundNumber: round})
		if err != nil {
			t.Fatalf("RoundPrompt round %d: %v", round, err)
		}
		if !prompt.Valid() {
			t.Fatalf("static prompt for round %d is not usable", round)
		}
		seen[prompt.CorrectTarget.Position] = true
	}
	// The deck spreads correct answers over every grid position so a bingo
	// line stays reachable on fallback content.
	if len(seen) != 9 {
		t.Errorf("deck covers %d positions, want 9", len(seen))
	}

	// Round numbers past the deck wrap around.
	first, _ := p.RoundPrompt(ctx, PromptRequest{RoundNumber: 1})
	wrapped, _ := p.RoundPrompt(ctx, PromptRequest{RoundNumber: len(staticDeck) + 1})
	if first.PromptText != wrapped.PromptText {
		t.Error("deck should cycle for rounds past its length")
	}
}

func TestGenerativeClientFetchesPrompt(t *testing.T) {
	want := RoundPrompt{
		PromptText:    "Who approves the merger term sheet?",
		Category:      "finance",
		CorrectTarget: Target{ID: "cfo", Label: "Chief Financial Officer", Position: 4},
		Distractors: []Target{
			{ID: "intern", Label: "Finance Intern", Position: 0},
		},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/prompts" {
			t.Errorf("path = %s, want /v1/prompts", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sekret" {
			t.Errorf("authorization = %q, want bearer token", got)
		}
		var req PromptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.RoundNumber != 2 {
			t.Errorf("round = %d, want 2", req.RoundNumber)
		}
		json.NewEncoder(w).Encode(want)
	}))
	defer server.Close()

	client := NewGenerativeClient(server.URL, "sekret")
	got, err := client.RoundPrompt(context.Background(), PromptRequest{Industry: "tech", RoundNumber: 2})
	if err != nil {
		t.Fatalf("RoundPrompt: %v", err)
	}
	if got.PromptText != want.PromptText || got.CorrectTarget.ID != want.CorrectTarget.ID {
		t.Errorf("prompt = %+v, want %+v", got, want)
	}
}

func TestFallbackOnServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer server.Close()

	p := NewFallbackProvider(NewGenerativeClient(server.URL, ""), NewStaticProvider())
	prompt, err := p.RoundPrompt(context.Background(), PromptRequest{RoundNumber: 1})
	if err != nil {
		t.Fatalf("RoundPrompt: %v", err)
	}
	if !prompt.Valid() {
		t.Fatal("fallback prompt should be usable")
	}
	if prompt.PromptText != staticDeck[0].PromptText {
		t.Error("expected the static deck prompt on primary failure")
	}
}

func TestFallbackOnUnusablePrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Well-formed response, but the correct target is off the grid.
		json.NewEncoder(w).Encode(RoundPrompt{
			PromptText:    "Broken",
			CorrectTarget: Target{ID: "x", Position: 42},
		})
	}))
	defer server.Close()

	p := NewFallbackProvider(NewGenerativeClient(server.URL, ""), NewStaticProvider())
	prompt, err := p.RoundPrompt(context.Background(), PromptRequest{RoundNumber: 1})
	if err != nil {
		t.Fatalf("RoundPrompt: %v", err)
	}
	if prompt.PromptText != staticDeck[0].PromptText {
		t.Error("unusable primary prompt should fall through to the deck")
	}
}

func TestPromptValid(t *testing.T) {
	valid := RoundPrompt{
		PromptText:    "ok",
		CorrectTarget: Target{ID: "t", Position: 0},
	}
	if !valid.Valid() {
		t.Error("prompt with on-grid correct target should be valid")
	}

	var nilPrompt *RoundPrompt
	if nilPrompt.Valid() {
		t.Error("nil prompt should be invalid")
	}
	noTarget := RoundPrompt{PromptText: "ok"}
	if noTarget.Valid() {
		t.Error("prompt without correct target should be invalid")
	}
	offGrid := RoundPrompt{PromptText: "ok", CorrectTarget: Target{ID: "t", Position: 9}}
	if offGrid.Valid() {
		t.Error("off-grid target should be invalid")
	}
}
