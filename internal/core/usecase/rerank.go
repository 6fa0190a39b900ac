package usecase

import (
	"context"
	"sort"

	"github.com/kirillkom/knowledge-qa/internal/core/domain"
	"github.com/kirillkom/knowledge-qa/internal/core/ports"
)

// rerankCandidates re-scores the top-N fused candidates with the external
// relevance model and re-sorts that prefix by rerank score; candidates beyond
// N keep their fused order and are appended unchanged. Any collaborator
// failure skips the stage and returns the fused order with used=false — the
// degradation is never a pipeline error and the collaborator is never retried.
func rerankCandidates(
	ctx context.Context,
	reranker ports.Reranker,
	question string,
	fused []domain.FusedCandidate,
	topN int,
) (out []domain.FusedCandidate, used bool) {
	if reranker == nil || len(fused) == 0 {
		return fused, false
	}
	if topN <= 0 || topN > len(fused) {
		topN = len(fused)
	}

	head := make([]domain.FusedCandidate, topN)
	copy(head, fused[:topN])

	texts := make([]string, len(head))
	for i := range head {
		texts[i] = head[i].Text
	}

	scores, err := reranker.ScoreBatch(ctx, question, texts)
	if err != nil || len(scores) != len(head) {
		return fused, false
	}

	for i := range head {
		score := scores[i]
		head[i].RerankScore = &score
	}

	// Fused order is preserved between equal rerank scores by sort stability.
	sort.SliceStable(head, func(i, j int) bool {
		return *head[i].RerankScore > *head[j].RerankScore
	})

	if topN == len(fused) {
		return head, true
	}
	out = make([]domain.FusedCandidate, 0, len(fused))
	out = append(out, head...)
	out = append(out, fused[topN:]...)
	return out, true
}
