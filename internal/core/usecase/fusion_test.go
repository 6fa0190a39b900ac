package usecase

import (
	"math"
	"reflect"
	"testing"

	"github.com/kirillkom/knowledge-qa/internal/core/domain"
)

func TestFuseCandidatesDeterministic(t *testing.T) {
	semantic := []domain.Candidate{
		{ID: "a", Source: domain.SourceSemantic, RawScore: 0.9, Text: "a"},
		{ID: "b", Source: domain.SourceSemantic, RawScore: 0.5, Text: "b"},
		{ID: "c", Source: domain.SourceSemantic, RawScore: 0.1, Text: "c"},
	}
	lexical := []domain.Candidate{
		{ID: "b", Source: domain.SourceLexical, RawScore: 12, Text: "b"},
		{ID: "d", Source: domain.SourceLexical, RawScore: 7, Text: "d"},
	}

	first := fuseCandidates(semantic, lexical, defaultFusionWeights())
	second := fuseCandidates(semantic, lexical, defaultFusionWeights())
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("fusion is not deterministic:\nfirst  = %+v\nsecond = %+v", first, second)
	}
}

func TestFuseCandidatesMergesDualSourceByID(t *testing.T) {
	semantic := []domain.Candidate{
		{ID: "doc-1", RawScore: 0.9, Text: "one"},
		{ID: "doc-2", RawScore: 0.2, Text: "two"},
	}
	lexical := []domain.Candidate{
		{ID: "doc-2", RawScore: 5, Text: "two"},
		{ID: "doc-3", RawScore: 1, Text: "three"},
	}

	fused := fuseCandidates(semantic, lexical, defaultFusionWeights())
	if len(fused) != 3 {
		t.Fatalf("expected 3 fused candidates, got %d", len(fused))
	}

	byID := make(map[string]domain.FusedCandidate, len(fused))
	for _, c := range fused {
		if _, dup := byID[c.ID]; dup {
			t.Fatalf("duplicate fused candidate for %s", c.ID)
		}
		byID[c.ID] = c
	}
	if !byID["doc-2"].DualSource {
		t.Fatalf("expected doc-2 to be marked dual-source")
	}
	if byID["doc-2"].SemanticScore == nil || byID["doc-2"].LexicalScore == nil {
		t.Fatalf("expected both per-source scores on doc-2")
	}
	if byID["doc-1"].LexicalScore != nil {
		t.Fatalf("doc-1 must not carry a lexical score")
	}
}

func TestFuseCandidatesNoNaNOnDegenerateLists(t *testing.T) {
	cases := map[string]struct {
		semantic []domain.Candidate
		lexical  []domain.Candidate
	}{
		"single element": {
			semantic: []domain.Candidate{{ID: "a", RawScore: 0.4, Text: "a"}},
		},
		"zero score range": {
			semantic: []domain.Candidate{
				{ID: "a", RawScore: 0.5, Text: "a"},
				{ID: "b", RawScore: 0.5, Text: "b"},
			},
			lexical: []domain.Candidate{
				{ID: "c", RawScore: 0, Text: "c"},
				{ID: "d", RawScore: 0, Text: "d"},
			},
		},
	}

	for name, tc := range cases {
		fused := fuseCandidates(tc.semantic, tc.lexical, defaultFusionWeights())
		for _, c := range fused {
			if math.IsNaN(c.FusedScore) || math.IsInf(c.FusedScore, 0) {
				t.Fatalf("%s: fused score for %s is %v", name, c.ID, c.FusedScore)
			}
		}
	}
}

func TestFuseCandidatesDegenerateListRanksTopElementFirst(t *testing.T) {
	semantic := []domain.Candidate{
		{ID: "first", RawScore: 0.5, Text: "first"},
		{ID: "second", RawScore: 0.5, Text: "second"},
	}

	fused := fuseCandidates(semantic, nil, defaultFusionWeights())
	if fused[0].ID != "first" {
		t.Fatalf("expected list-order top element first, got %s", fused[0].ID)
	}
	if got := fused[0].FusedScore; got != 0.6 {
		t.Fatalf("expected top element fused score 0.6, got %v", got)
	}
	if got := fused[1].FusedScore; got != 0 {
		t.Fatalf("expected remaining element fused score 0, got %v", got)
	}
}

func TestFuseCandidatesDualSourceWinsEqualFusedScore(t *testing.T) {
	// With equal 0.5/0.5 weights: doc-a sits in both lists at normalized 0.5
	// per side (fused 0.5); doc-b is semantic-only at normalized 1.0 (fused
	// 0.5). Equal fused score, but the dual-source candidate must rank first.
	semantic := []domain.Candidate{
		{ID: "doc-b", RawScore: 1.0, Text: "b"},
		{ID: "doc-a", RawScore: 0.5, Text: "a"},
		{ID: "low", RawScore: 0.0, Text: "low"},
	}
	lexical := []domain.Candidate{
		{ID: "lex-top", RawScore: 8, Text: "lt"},
		{ID: "doc-a", RawScore: 4, Text: "a"},
		{ID: "lex-low", RawScore: 0, Text: "ll"},
	}

	fused := fuseCandidates(semantic, lexical, fusionWeights{Semantic: 0.5, Lexical: 0.5})

	var posA, posB = -1, -1
	var scoreA, scoreB float64
	for i, c := range fused {
		switch c.ID {
		case "doc-a":
			posA, scoreA = i, c.FusedScore
		case "doc-b":
			posB, scoreB = i, c.FusedScore
		}
	}
	if posA < 0 || posB < 0 {
		t.Fatalf("missing candidates in fused output: %+v", fused)
	}
	if math.Abs(scoreA-scoreB) > 1e-9 {
		t.Fatalf("test setup broken: scores differ (%v vs %v)", scoreA, scoreB)
	}
	if posA > posB {
		t.Fatalf("dual-source doc-a must outrank single-source doc-b at equal fused score")
	}
}

func TestFuseCandidatesToleratesDuplicateIDsWithinOneList(t *testing.T) {
	semantic := []domain.Candidate{
		{ID: "dup", RawScore: 0.3, Text: "low occurrence"},
		{ID: "other", RawScore: 0.9, Text: "other"},
		{ID: "dup", RawScore: 0.8, Text: "high occurrence"},
	}

	fused := fuseCandidates(semantic, nil, defaultFusionWeights())
	if len(fused) != 2 {
		t.Fatalf("expected duplicates collapsed to 2 candidates, got %d", len(fused))
	}
	for _, c := range fused {
		if c.ID == "dup" && c.Text != "high occurrence" {
			t.Fatalf("expected the highest-scoring occurrence kept, got %q", c.Text)
		}
	}
}

func TestFuseCandidatesSingleSourceScaledByOwnWeight(t *testing.T) {
	semantic := []domain.Candidate{
		{ID: "a", RawScore: 1.0, Text: "a"},
		{ID: "b", RawScore: 0.0, Text: "b"},
	}

	fused := fuseCandidates(semantic, nil, defaultFusionWeights())
	if got := fused[0].FusedScore; got != 0.6 {
		t.Fatalf("semantic-only top candidate: want 0.6, got %v", got)
	}
}
