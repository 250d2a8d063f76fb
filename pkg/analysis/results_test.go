package analysis

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/researchwiseai/pulse-go/pkg/pulse"
)

func testAllocation() *ThemeAllocationResult {
	return &ThemeAllocationResult{
		Texts:       []string{"a", "b", "c"},
		Themes:      []string{"x", "y", "z"},
		Assignments: []int{1, 0, 2},
		Similarity: [][]float64{
			{0.1, 0.9, 0.5},
			{0.3, 0.2, 0.1},
			{0.4, 0.2, 0.6},
		},
		SingleLabel: true,
		Threshold:   0.5,
	}
}

func TestThemeAllocationResult_AssignSingle(t *testing.T) {
	r := testAllocation()

	tests := []struct {
		threshold float64
		want      []string
	}{
		{0.5, []string{"y", "", "z"}},
		{0.0, []string{"y", "x", "z"}},
		{0.95, []string{"", "", ""}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, r.AssignSingle(tt.threshold)); diff != "" {
			t.Errorf("AssignSingle(%v) mismatch (-want +got):\n%s", tt.threshold, diff)
		}
	}
	if diff := cmp.Diff([]string{"y", "", "z"}, r.Assign()); diff != "" {
		t.Errorf("Assign mismatch (-want +got):\n%s", diff)
	}
}

func TestThemeAllocationResult_AssignSingleWithoutScores(t *testing.T) {
	r := &ThemeAllocationResult{Themes: []string{"x", "y"}, Assignments: []int{1, 1, 0}}
	if diff := cmp.Diff([]string{"y", "y", "x"}, r.AssignSingle(0.5)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestThemeAllocationResult_AssignMulti(t *testing.T) {
	r := testAllocation()

	want := [][]string{{"y", "z"}, {"x", "y"}, {"z", "x"}}
	if diff := cmp.Diff(want, r.AssignMulti(2)); diff != "" {
		t.Errorf("AssignMulti(2) mismatch (-want +got):\n%s", diff)
	}
	if got := r.AssignMulti(0); len(got[0]) != 3 {
		t.Errorf("AssignMulti(0) returned %d themes per text, want all 3", len(got[0]))
	}
}

func TestThemeAllocationResult_CountsAndRows(t *testing.T) {
	r := testAllocation()

	if diff := cmp.Diff(map[string]int{"x": 1, "y": 1, "z": 1}, r.Counts()); diff != "" {
		t.Errorf("Counts mismatch (-want +got):\n%s", diff)
	}
	rows := r.Rows()
	if len(rows) != 9 {
		t.Fatalf("got %d rows, want 9", len(rows))
	}
	if rows[1] != (AllocationRow{Text: "a", Theme: "y", Score: 0.9}) {
		t.Errorf("rows[1] = %+v", rows[1])
	}
}

func TestSentimentResult_Summary(t *testing.T) {
	r := &SentimentResult{
		Texts: []string{"a", "b", "c"},
		Results: []pulse.SentimentResult{
			{Sentiment: "positive", Confidence: 0.9},
			{Sentiment: "negative", Confidence: 0.8},
			{Sentiment: "positive", Confidence: 0.7},
		},
	}
	if diff := cmp.Diff(map[string]int{"positive": 2, "negative": 1}, r.Summary()); diff != "" {
		t.Errorf("Summary mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"positive", "negative", "positive"}, r.Labels()); diff != "" {
		t.Errorf("Labels mismatch (-want +got):\n%s", diff)
	}
	if got := r.Rows()[1]; got != (SentimentRow{Text: "b", Sentiment: "negative", Confidence: 0.8}) {
		t.Errorf("Rows()[1] = %+v", got)
	}
}

func TestClusterResult_Nearest(t *testing.T) {
	r := &ClusterResult{Matrix: [][]float64{
		{1, 0.2, 0.8},
		{0.2, 1, 0.5},
		{0.8, 0.5, 1},
	}}
	want := [][]int{{2}, {2}, {0}}
	if diff := cmp.Diff(want, r.Nearest(1)); diff != "" {
		t.Errorf("Nearest(1) mismatch (-want +got):\n%s", diff)
	}
	if got := r.Nearest(5)[0]; len(got) != 2 {
		t.Errorf("Nearest(5)[0] = %v, want both other texts", got)
	}
}

func TestThemeGenerationResult_Rows(t *testing.T) {
	r := &ThemeGenerationResult{Themes: []pulse.Theme{
		{ShortLabel: "speed", Label: "Speed", Representatives: []string{"slow", "queue"}},
		{ShortLabel: "solo", Representatives: []string{"only"}},
	}}
	rows := r.Rows()
	if rows[0].Representative2 != "queue" || rows[1].Representative1 != "only" || rows[1].Representative2 != "" {
		t.Errorf("Rows = %+v", rows)
	}
}

func TestThemeExtractionResult_Rows(t *testing.T) {
	r := &ThemeExtractionResult{
		Texts:       []string{"a", "b"},
		Themes:      []string{"x"},
		Extractions: [][][]string{{{"a1", "a2"}}, {{}}},
	}
	rows := r.Rows()
	if len(rows) != 2 || rows[0].Theme != "x" || len(rows[0].Elements) != 2 || rows[1].Text != "b" {
		t.Errorf("Rows = %+v", rows)
	}
}
