package usecase

import (
	"strings"

	"github.com/kirillkom/knowledge-qa/internal/core/domain"
)

// domainKeyword is one domain-indicative vocabulary entry. Terms containing a
// space are matched as phrases against the lowercased text; single terms are
// matched against the token set, so short terms like "api" never fire inside
// unrelated words.
type domainKeyword struct {
	term   string
	weight float64
}

type domainVocabulary struct {
	domain   domain.ContentDomain
	keywords []domainKeyword
}

// DomainClassifier infers a content domain from the top-ranked candidates'
// text and filenames. Pure function of its input: no external calls, no state
// mutation, deterministic for identical candidate lists.
type DomainClassifier struct {
	minHits       float64
	topCandidates int
	vocabularies  []domainVocabulary
}

func NewDomainClassifier(minHits float64, topCandidates int) *DomainClassifier {
	if minHits <= 0 {
		minHits = 2
	}
	if topCandidates <= 0 {
		topCandidates = 5
	}
	return &DomainClassifier{
		minHits:       minHits,
		topCandidates: topCandidates,
		vocabularies:  defaultVocabularies(),
	}
}

func (c *DomainClassifier) Classify(candidates []domain.FusedCandidate) domain.DomainLabel {
	limit := c.topCandidates
	if limit > len(candidates) {
		limit = len(candidates)
	}
	if limit == 0 {
		return domain.DomainLabel{Domain: domain.DomainGeneric, Confidence: 0}
	}

	scores := make([]float64, len(c.vocabularies))
	for i := 0; i < limit; i++ {
		lower := strings.ToLower(candidates[i].Text + " " + candidates[i].Filename)
		tokens := toTokenSet(lower)
		for vi := range c.vocabularies {
			for _, kw := range c.vocabularies[vi].keywords {
				if keywordHit(kw.term, lower, tokens) {
					scores[vi] += kw.weight
				}
			}
		}
	}

	bestIdx := -1
	var best, total float64
	for vi, score := range scores {
		total += score
		if score > best {
			best = score
			bestIdx = vi
		}
	}

	if bestIdx < 0 || best < c.minHits {
		return domain.DomainLabel{Domain: domain.DomainGeneric, Confidence: 0}
	}

	confidence := best / total
	if confidence > 1 {
		confidence = 1
	}
	return domain.DomainLabel{
		Domain:     c.vocabularies[bestIdx].domain,
		Confidence: confidence,
	}
}

func keywordHit(term, lowerText string, tokens map[string]struct{}) bool {
	if strings.ContainsRune(term, ' ') {
		return strings.Contains(lowerText, term)
	}
	_, ok := tokens[term]
	return ok
}

func defaultVocabularies() []domainVocabulary {
	return []domainVocabulary{
		{
			domain: domain.DomainFinancial,
			keywords: []domainKeyword{
				{term: "balance sheet", weight: 2},
				{term: "income statement", weight: 2},
				{term: "cash flow", weight: 2},
				{term: "net profit", weight: 2},
				{term: "fiscal year", weight: 2},
				{term: "ebitda", weight: 2},
				{term: "revenue", weight: 1},
				{term: "shareholders", weight: 1},
				{term: "dividend", weight: 1},
				{term: "liabilities", weight: 1},
				{term: "audited", weight: 1},
			},
		},
		{
			domain: domain.DomainLegal,
			keywords: []domainKeyword{
				{term: "hereinafter", weight: 2},
				{term: "pursuant", weight: 2},
				{term: "indemnify", weight: 2},
				{term: "governing law", weight: 2},
				{term: "clause", weight: 1},
				{term: "agreement", weight: 1},
				{term: "obligation", weight: 1},
				{term: "breach", weight: 1},
				{term: "jurisdiction", weight: 1},
				{term: "warranty", weight: 1},
			},
		},
		{
			domain: domain.DomainTechnical,
			keywords: []domainKeyword{
				{term: "api", weight: 2},
				{term: "endpoint", weight: 2},
				{term: "sdk", weight: 2},
				{term: "source code", weight: 2},
				{term: "deployment", weight: 1},
				{term: "algorithm", weight: 1},
				{term: "database", weight: 1},
				{term: "latency", weight: 1},
				{term: "runtime", weight: 1},
				{term: "configuration", weight: 1},
			},
		},
		{
			domain: domain.DomainAcademic,
			keywords: []domainKeyword{
				{term: "methodology", weight: 2},
				{term: "hypothesis", weight: 2},
				{term: "et al", weight: 2},
				{term: "related work", weight: 2},
				{term: "we propose", weight: 2},
				{term: "abstract", weight: 1},
				{term: "citation", weight: 1},
				{term: "dataset", weight: 1},
				{term: "empirical", weight: 1},
				{term: "peer review", weight: 1},
			},
		},
	}
}
