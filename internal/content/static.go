package content

import (
	"context"
)

// staticDeck is the canned prompt set used when the generative provider is
// unavailable. Positions cover the whole grid so bingo stays reachable on
// fallback content.
var staticDeck = []RoundPrompt{
	{
		PromptText:    "Which role owns the company's overall strategy and vision?",
		Category:      "leadership",
		CorrectTarget: Target{ID: "ceo-strategy", Label: "Chief Executive Officer", Position: 0},
		Distractors: []Target{
			{ID: "office-manager", Label: "Office Manager", Position: 3},
			{ID: "sales-rep", Label: "Sales Representative", Position: 6},
		},
	},
	{
		PromptText:    "Which role prepares the quarterly budget forecast?",
		Category:      "finance",
		CorrectTarget: Target{ID: "cfo-budget", Label: "Chief Financial Officer", Position: 1},
		Distractors: []Target{
			{ID: "recruiter", Label: "Technical Recruiter", Position: 4},
			{ID: "designer", Label: "Product Designer", Position: 7},
		},
	},
	{
		PromptText:    "Which role decides the technology platform for a new product?",
		Category:      "technology",
		CorrectTarget: Target{ID: "cto-platform", Label: "Chief Technology Officer", Position: 2},
		Distractors: []Target{
			{ID: "accountant", Label: "Staff Accountant", Position: 5},
			{ID: "copywriter", Label: "Marketing Copywriter", Position: 8},
		},
	},
	{
		PromptText:    "Which role runs the launch campaign for a new brand?",
		Category:      "marketing",
		CorrectTarget: Target{ID: "cmo-campaign", Label: "Chief Marketing Officer", Position: 3},
		Distractors: []Target{
			{ID: "it-support", Label: "IT Support Specialist", Position: 0},
			{ID: "paralegal", Label: "Paralegal", Position: 6},
		},
	},
	{
		PromptText:    "Which role designs the company's hiring and retention programs?",
		Category:      "people",
		CorrectTarget: Target{ID: "chro-hiring", Label: "Chief Human Resources Officer", Position: 4},
		Distractors: []Target{
			{ID: "data-analyst", Label: "Data Analyst", Position: 1},
			{ID: "facilities", Label: "Facilities Coordinator", Position: 7},
		},
	},
	{
		PromptText:    "Which role signs off on the annual financial statements?",
		Category:      "finance",
		CorrectTarget: Target{ID: "cfo-statements", Label: "Chief Financial Officer", Position: 5},
		Distractors: []Target{
			{ID: "pm", Label: "Project Manager", Position: 2},
			{ID: "support-lead", Label: "Customer Support Lead", Position: 8},
		},
	},
	{
		PromptText:    "Which role owns the security posture of the engineering org?",
		Category:      "technology",
		CorrectTarget: Target{ID: "cto-security", Label: "Chief Technology Officer", Position: 6},
		Distractors: []Target{
			{ID: "event-planner", Label: "Corporate Event Planner", Position: 0},
			{ID: "buyer", Label: "Procurement Buyer", Position: 3},
		},
	},
	{
		PromptText:    "Which role approves the employer-brand messaging?",
		Category:      "people",
		CorrectTarget: Target{ID: "chro-brand", Label: "Chief Human Resources Officer", Position: 7},
		Distractors: []Target{
			{ID: "qa-engineer", Label: "QA Engineer", Position: 1},
			{ID: "treasurer", Label: "Assistant Treasurer", Position: 4},
		},
	},
	{
		PromptText:    "Which role pitches the company story to industry press?",
		Category:      "marketing",
		CorrectTarget: Target{ID: "cmo-press", Label: "Chief Marketing Officer", Position: 8},
		Distractors: []Target{
			{ID: "sre", Label: "Site Reliability Engineer", Position: 2},
			{ID: "auditor", Label: "Internal Auditor", Position: 5},
		},
	},
}

// StaticProvider serves prompts from the canned deck, cycling by round
// number so repeated games stay deterministic.
type StaticProvider struct{}

// NewStaticProvider returns the canned prompt source.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{}
}

func (p *StaticProvider) RoundPrompt(ctx context.Context, req PromptRequest) (*RoundPrompt, error) {
	idx := (req.RoundNumber - 1) % len(staticDeck)
	if idx < 0 {
		idx = 0
	}
	prompt := staticDeck[idx]
	return &prompt, nil
}
