package usecase

import (
	"sort"

	"github.com/kirillkom/knowledge-qa/internal/core/domain"
)

type fusionWeights struct {
	Semantic float64
	Lexical  float64
}

func defaultFusionWeights() fusionWeights {
	return fusionWeights{Semantic: 0.6, Lexical: 0.4}
}

// fuseCandidates merges the two independently ranked lists into one
// deduplicated ranking. Each list is min-max normalized on its own, so the raw
// score scale of one source never leaks into the other's contribution, and the
// result depends only on list contents, not on which source finished first.
func fuseCandidates(semantic, lexical []domain.Candidate, weights fusionWeights) []domain.FusedCandidate {
	if weights.Semantic <= 0 && weights.Lexical <= 0 {
		weights = defaultFusionWeights()
	}

	semantic = dedupeKeepBest(semantic)
	lexical = dedupeKeepBest(lexical)

	semNorm := normalizeScores(semantic)
	lexNorm := normalizeScores(lexical)

	type fusedAccum struct {
		out         domain.FusedCandidate
		rawSemantic float64
		hasSemantic bool
	}

	acc := make(map[string]*fusedAccum, len(semantic)+len(lexical))
	// Output slots are allocated in semantic-list order first, then
	// lexical-only candidates in lexical-list order; the stable sort below
	// preserves this as the last-resort tie-break.
	ordered := make([]*fusedAccum, 0, len(semantic)+len(lexical))

	for i, cand := range semantic {
		entry := &fusedAccum{
			out:         newFusedCandidate(cand),
			rawSemantic: cand.RawScore,
			hasSemantic: true,
		}
		entry.out.SemanticScore = floatPtr(semNorm[i])
		acc[cand.ID] = entry
		ordered = append(ordered, entry)
	}
	for i, cand := range lexical {
		if entry, ok := acc[cand.ID]; ok {
			entry.out.LexicalScore = floatPtr(lexNorm[i])
			entry.out.DualSource = true
			mergeRicherFields(&entry.out, cand)
			continue
		}
		entry := &fusedAccum{out: newFusedCandidate(cand)}
		entry.out.LexicalScore = floatPtr(lexNorm[i])
		acc[cand.ID] = entry
		ordered = append(ordered, entry)
	}

	for _, entry := range ordered {
		var fused float64
		if entry.out.SemanticScore != nil {
			fused += weights.Semantic * *entry.out.SemanticScore
		}
		if entry.out.LexicalScore != nil {
			fused += weights.Lexical * *entry.out.LexicalScore
		}
		entry.out.FusedScore = fused
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].out.FusedScore != ordered[j].out.FusedScore {
			return ordered[i].out.FusedScore > ordered[j].out.FusedScore
		}
		// Equal fused score: a candidate matched by both sources outranks a
		// single-source candidate.
		if ordered[i].out.DualSource != ordered[j].out.DualSource {
			return ordered[i].out.DualSource
		}
		if ordered[i].hasSemantic != ordered[j].hasSemantic {
			return ordered[i].hasSemantic
		}
		if ordered[i].hasSemantic && ordered[i].rawSemantic != ordered[j].rawSemantic {
			return ordered[i].rawSemantic > ordered[j].rawSemantic
		}
		return false
	})

	out := make([]domain.FusedCandidate, 0, len(ordered))
	for _, entry := range ordered {
		out = append(out, entry.out)
	}
	return out
}

// normalizeScores min-max normalizes raw scores over one list. A single
// element or a zero score range yields 1.0 for the top-ranked element and 0
// for the rest, so degenerate lists never divide by zero.
func normalizeScores(list []domain.Candidate) []float64 {
	if len(list) == 0 {
		return nil
	}
	minScore, maxScore := list[0].RawScore, list[0].RawScore
	for _, cand := range list[1:] {
		if cand.RawScore < minScore {
			minScore = cand.RawScore
		}
		if cand.RawScore > maxScore {
			maxScore = cand.RawScore
		}
	}

	out := make([]float64, len(list))
	scoreRange := maxScore - minScore
	if scoreRange <= 0 {
		out[0] = 1
		return out
	}
	for i, cand := range list {
		out[i] = (cand.RawScore - minScore) / scoreRange
	}
	return out
}

// dedupeKeepBest tolerates duplicate ids within one source list, keeping the
// highest-scoring occurrence at the position of the first one.
func dedupeKeepBest(list []domain.Candidate) []domain.Candidate {
	if len(list) < 2 {
		return list
	}
	seen := make(map[string]int, len(list))
	out := make([]domain.Candidate, 0, len(list))
	for _, cand := range list {
		if at, ok := seen[cand.ID]; ok {
			if cand.RawScore > out[at].RawScore {
				out[at] = cand
			}
			continue
		}
		seen[cand.ID] = len(out)
		out = append(out, cand)
	}
	return out
}

func trimCandidates(candidates []domain.FusedCandidate, limit int) []domain.FusedCandidate {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	return candidates[:limit]
}

func newFusedCandidate(cand domain.Candidate) domain.FusedCandidate {
	return domain.FusedCandidate{
		ID:         cand.ID,
		Text:       cand.Text,
		Filename:   cand.Filename,
		Category:   cand.Category,
		ChunkIndex: cand.ChunkIndex,
	}
}

func mergeRicherFields(dst *domain.FusedCandidate, cand domain.Candidate) {
	if dst.Text == "" {
		dst.Text = cand.Text
	}
	if dst.Filename == "" {
		dst.Filename = cand.Filename
	}
	if dst.Category == "" {
		dst.Category = cand.Category
	}
}

func floatPtr(v float64) *float64 {
	return &v
}
