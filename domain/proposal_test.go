package domain

import "testing"

func TestBandConfidenceBoundaries(t *testing.T) {
	cases := []struct {
		confidence float64
		want       ConfidenceBand
	}{
		{100, BandHigh},
		{80, BandHigh},
		{79.9, BandMedium},
		{50, BandMedium},
		{49.9, BandLow},
		{45, BandLow},
		{0, BandLow},
	}
	for _, tc := range cases {
		if got := BandConfidence(tc.confidence); got != tc.want {
			t.Errorf("BandConfidence(%v) = %s, want %s", tc.confidence, got, tc.want)
		}
	}
}

func TestRecommendedActionAutoApprovable(t *testing.T) {
	if !ActionAuto.AutoApprovable() {
		t.Error("auto should be auto-approvable")
	}
	for _, a := range []RecommendedAction{ActionAsk, ActionClarify, ActionAnswerQuestion} {
		if a.AutoApprovable() {
			t.Errorf("%s should require explicit confirmation", a)
		}
	}
}

func TestProposalDraftStartsInTodo(t *testing.T) {
	p := TaskProposal{Title: "Draft Q3 plan", Assignee: "sam", Confidence: 45}
	d := p.Draft()
	if d.Status != StatusTodo {
		t.Fatalf("draft status = %s, want todo", d.Status)
	}
	if d.Title != p.Title || d.Assignee != p.Assignee {
		t.Fatalf("draft lost fields: %#v", d)
	}
	if p.Band() != BandLow {
		t.Fatalf("band = %s, want low", p.Band())
	}
}
