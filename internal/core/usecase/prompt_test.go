package usecase

import (
	"strings"
	"testing"

	"github.com/kirillkom/knowledge-qa/internal/core/domain"
)

func TestAssemblePromptRespectsContextBudget(t *testing.T) {
	strategy := domain.PromptStrategy{
		Domain:          domain.DomainGeneric,
		Template:        "Q: {{question}}\n\n{{context}}",
		MaxContextChars: 100,
	}
	snippet := strings.Repeat("x", 40)
	sources := []domain.FusedCandidate{
		{ID: "1", Text: snippet, Filename: "a.txt"},
		{ID: "2", Text: snippet, Filename: "b.txt"},
		{ID: "3", Text: snippet, Filename: "c.txt"},
	}

	prompt, included := assemblePrompt(strategy, "q", sources)
	if included != 2 {
		t.Fatalf("expected exactly 2 snippets within the 100-char budget, got %d", included)
	}
	if !strings.Contains(prompt, "file=a.txt") || !strings.Contains(prompt, "file=b.txt") {
		t.Fatalf("expected first two sources in prompt:\n%s", prompt)
	}
	if strings.Contains(prompt, "file=c.txt") {
		t.Fatalf("third source must be dropped from the prompt:\n%s", prompt)
	}
}

func TestAssemblePromptFillsPlaceholders(t *testing.T) {
	strategy := domain.PromptStrategy{
		Domain:          domain.DomainGeneric,
		Template:        "Question: {{question}}\nContext:\n{{context}}",
		MaxContextChars: 1000,
	}
	sources := []domain.FusedCandidate{{ID: "1", Text: "the evidence", Filename: "doc.txt", FusedScore: 0.8}}

	prompt, _ := assemblePrompt(strategy, "what happened?", sources)
	if !strings.Contains(prompt, "Question: what happened?") {
		t.Fatalf("question placeholder not filled:\n%s", prompt)
	}
	if !strings.Contains(prompt, "the evidence") {
		t.Fatalf("context placeholder not filled:\n%s", prompt)
	}
	if strings.Contains(prompt, "{{") {
		t.Fatalf("unfilled placeholder remains:\n%s", prompt)
	}
}

func TestAssemblePromptUsesRerankScoreWhenPresent(t *testing.T) {
	strategy := domain.PromptStrategy{
		Domain:          domain.DomainGeneric,
		Template:        "{{context}}",
		MaxContextChars: 1000,
	}
	score := 0.917
	sources := []domain.FusedCandidate{
		{ID: "1", Text: "t", Filename: "a.txt", FusedScore: 0.2, RerankScore: &score},
	}

	prompt, _ := assemblePrompt(strategy, "q", sources)
	if !strings.Contains(prompt, "score=0.917") {
		t.Fatalf("expected rerank score in context header:\n%s", prompt)
	}
}

func TestPromptLibraryFallsBackToGeneric(t *testing.T) {
	library := NewPromptLibrary(nil, 0)

	strategy := library.StrategyFor(domain.ContentDomain("unknown"))
	if strategy.Domain != domain.DomainGeneric {
		t.Fatalf("expected generic fallback, got %s", strategy.Domain)
	}
	if strategy.Template == "" || strategy.MaxContextChars <= 0 {
		t.Fatalf("fallback strategy must be usable: %+v", strategy)
	}
}

func TestPromptLibraryAppliesOverrides(t *testing.T) {
	library := NewPromptLibrary([]domain.PromptStrategy{
		{Domain: domain.DomainLegal, Template: "legal override {{question}} {{context}}", MaxContextChars: 123},
	}, 0)

	strategy := library.StrategyFor(domain.DomainLegal)
	if strategy.MaxContextChars != 123 || !strings.HasPrefix(strategy.Template, "legal override") {
		t.Fatalf("override not applied: %+v", strategy)
	}
	// Other domains keep their defaults.
	if got := library.StrategyFor(domain.DomainFinancial); got.MaxContextChars != defaultMaxContextChars {
		t.Fatalf("financial default clobbered: %+v", got)
	}
}

func TestDefaultStrategiesCoverEveryDomain(t *testing.T) {
	library := NewPromptLibrary(nil, 0)
	for _, d := range []domain.ContentDomain{
		domain.DomainFinancial,
		domain.DomainLegal,
		domain.DomainTechnical,
		domain.DomainAcademic,
		domain.DomainGeneric,
	} {
		strategy := library.StrategyFor(d)
		if strategy.Domain != d {
			t.Fatalf("no dedicated strategy for %s", d)
		}
		if !strings.Contains(strategy.Template, questionPlaceholder) ||
			!strings.Contains(strategy.Template, contextPlaceholder) {
			t.Fatalf("strategy for %s misses a placeholder", d)
		}
	}
}
