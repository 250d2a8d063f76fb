package pulse

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSimilarityResponse_Similarity(t *testing.T) {
	tests := []struct {
		name    string
		resp    SimilarityResponse
		want    [][]float64
		wantErr bool
	}{
		{
			name: "matrix given",
			resp: SimilarityResponse{Scenario: ScenarioSelf, Matrix: [][]float64{{1, 0.5}, {0.5, 1}}},
			want: [][]float64{{1, 0.5}, {0.5, 1}},
		},
		{
			name: "self with diagonal",
			resp: SimilarityResponse{Scenario: ScenarioSelf, N: 3, Flattened: []float64{1, 0.2, 0.3, 1, 0.4, 1}},
			want: [][]float64{{1, 0.2, 0.3}, {0.2, 1, 0.4}, {0.3, 0.4, 1}},
		},
		{
			name: "self without diagonal",
			resp: SimilarityResponse{Scenario: ScenarioSelf, N: 3, Flattened: []float64{0.2, 0.3, 0.4}},
			want: [][]float64{{1, 0.2, 0.3}, {0.2, 1, 0.4}, {0.3, 0.4, 1}},
		},
		{
			name: "cross",
			resp: SimilarityResponse{Scenario: ScenarioCross, N: 2, Flattened: []float64{1, 2, 3, 4, 5, 6}},
			want: [][]float64{{1, 2, 3}, {4, 5, 6}},
		},
		{
			name:    "self bad length",
			resp:    SimilarityResponse{Scenario: ScenarioSelf, N: 3, Flattened: []float64{1, 2}},
			wantErr: true,
		},
		{
			name:    "cross bad length",
			resp:    SimilarityResponse{Scenario: ScenarioCross, N: 4, Flattened: []float64{1, 2, 3}},
			wantErr: true,
		},
		{
			name:    "unknown scenario",
			resp:    SimilarityResponse{Scenario: "diagonal", N: 1, Flattened: []float64{1}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.resp.Similarity()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Similarity: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("matrix mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSentimentResponse_Legacy(t *testing.T) {
	var resp SentimentResponse
	if err := json.Unmarshal([]byte(`{"sentiments":["pos","neg","neu","mixed"]}`), &resp); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want := []string{SentimentPositive, SentimentNegative, SentimentNeutral, SentimentMixed}
	if diff := cmp.Diff(want, resp.Labels()); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}

	var current SentimentResponse
	if err := json.Unmarshal([]byte(`{"results":[{"sentiment":"negative","confidence":0.8}],"requestId":"r1"}`), &current); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if current.RequestID != "r1" || current.Results[0].Confidence != 0.8 {
		t.Errorf("unexpected response: %+v", current)
	}
}

func TestSimilarityRequest_Body(t *testing.T) {
	tests := []struct {
		name string
		req  SimilarityRequest
		want string
	}{
		{"self slow", SimilarityRequest{Set: []string{"a", "b"}}, `{"set":["a","b"],"flatten":false}`},
		{"cross fast", SimilarityRequest{SetA: []string{"a"}, SetB: []string{"b"}, Fast: true, Flatten: true}, `{"set_a":["a"],"set_b":["b"],"fast":true,"flatten":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.req)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.want {
				t.Errorf("body = %s, want %s", got, tt.want)
			}
		})
	}
}
