package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/knowledge-qa/internal/core/domain"
)

const (
	questionPlaceholder = "{{question}}"
	contextPlaceholder  = "{{context}}"

	defaultMaxContextChars = 6000
)

// PromptLibrary is the fixed mapping from content domain to prompt strategy.
// Overrides replace the compiled-in defaults per domain; lookups for domains
// without an entry fall back to the generic strategy and never fail.
type PromptLibrary struct {
	strategies map[domain.ContentDomain]domain.PromptStrategy
}

func NewPromptLibrary(overrides []domain.PromptStrategy, maxContextChars int) *PromptLibrary {
	if maxContextChars <= 0 {
		maxContextChars = defaultMaxContextChars
	}

	strategies := make(map[domain.ContentDomain]domain.PromptStrategy, 5)
	for _, strategy := range defaultStrategies(maxContextChars) {
		strategies[strategy.Domain] = strategy
	}
	for _, strategy := range overrides {
		if strategy.Template == "" {
			continue
		}
		if strategy.MaxContextChars <= 0 {
			strategy.MaxContextChars = maxContextChars
		}
		strategies[strategy.Domain] = strategy
	}
	return &PromptLibrary{strategies: strategies}
}

func (l *PromptLibrary) StrategyFor(d domain.ContentDomain) domain.PromptStrategy {
	if strategy, ok := l.strategies[d]; ok {
		return strategy
	}
	return l.strategies[domain.DomainGeneric]
}

// assemblePrompt fills the strategy template with the question and a context
// block built by greedily appending source snippets, highest-ranked first,
// until the next snippet text would exceed the strategy's context budget.
// Pure function; sources beyond the budget stay in RankedSources for citation.
func assemblePrompt(strategy domain.PromptStrategy, question string, sources []domain.FusedCandidate) (prompt string, included int) {
	var contextBlock strings.Builder
	used := 0
	for _, src := range sources {
		if used+len(src.Text) > strategy.MaxContextChars {
			break
		}
		used += len(src.Text)
		contextBlock.WriteString(fmt.Sprintf(
			"[%d] file=%s score=%.3f\n%s\n\n",
			included+1,
			src.Filename,
			orderingScore(src),
			src.Text,
		))
		included++
	}

	prompt = strings.NewReplacer(
		questionPlaceholder, question,
		contextPlaceholder, strings.TrimRight(contextBlock.String(), "\n"),
	).Replace(strategy.Template)
	return prompt, included
}

// orderingScore is the most authoritative score available for a candidate.
func orderingScore(src domain.FusedCandidate) float64 {
	if src.RerankScore != nil {
		return *src.RerankScore
	}
	return src.FusedScore
}

func defaultStrategies(maxContextChars int) []domain.PromptStrategy {
	const answerFormat = `Answer with:
1. A step-by-step analysis of the relevant evidence.
2. A short reasoning summary.
3. The final answer on its own line, or "N/A" if the context does not contain it.`

	return []domain.PromptStrategy{
		{
			Domain:          domain.DomainGeneric,
			MaxContextChars: maxContextChars,
			Template: `You are a content analyst. Answer the question using only the context below.
If the context is insufficient, say so directly.

Context:
{{context}}

---

Question:
{{question}}

` + answerFormat,
		},
		{
			Domain:          domain.DomainFinancial,
			MaxContextChars: maxContextChars,
			Template: `You are a financial analyst reviewing company reports. Answer the question
using only the context below. Match metric definitions and units exactly,
respect accounting periods, and never derive figures the context does not
state.

Context:
{{context}}

---

Question:
{{question}}

` + answerFormat,
		},
		{
			Domain:          domain.DomainLegal,
			MaxContextChars: maxContextChars,
			Template: `You are a legal analyst reviewing contracts and legal documents. Answer the
question strictly from the clauses below; do not speculate beyond them. Note
applicability conditions, exceptions, and effective periods where relevant.

Context:
{{context}}

---

Question:
{{question}}

` + answerFormat,
		},
		{
			Domain:          domain.DomainTechnical,
			MaxContextChars: maxContextChars,
			Template: `You are a software engineer answering from technical documentation. Answer
the question using only the context below, respecting stated versions,
compatibility notes, and dependencies.

Context:
{{context}}

---

Question:
{{question}}

` + answerFormat,
		},
		{
			Domain:          domain.DomainAcademic,
			MaxContextChars: maxContextChars,
			Template: `You are a researcher answering from academic papers. Answer the question
using only the context below, distinguishing stated conclusions from
hypotheses and noting the limitations the authors report.

Context:
{{context}}

---

Question:
{{question}}

` + answerFormat,
		},
	}
}
