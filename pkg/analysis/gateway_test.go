package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/researchwiseai/pulse-go/internal/logging"
	"github.com/researchwiseai/pulse-go/pkg/pulse"
)

// fakeGateway answers every operation in memory and records the requests.
type fakeGateway struct {
	mu         sync.Mutex
	calls      map[string]int
	similarity []pulse.SimilarityRequest
	themes     []pulse.ThemesRequest
	sentiment  []pulse.SentimentRequest
	extract    []pulse.ExtractionsRequest
	failOn     string
	closed     int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{calls: make(map[string]int)}
}

var errGateway = errors.New("gateway unavailable")

func (g *fakeGateway) record(op string) error {
	g.calls[op]++
	if g.failOn == op {
		return errGateway
	}
	return nil
}

func (g *fakeGateway) count(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

// score is 1 for texts sharing their first letter, 0.2 otherwise.
func score(a, b string) float64 {
	if a != "" && b != "" && a[0] == b[0] {
		return 1
	}
	return 0.2
}

func (g *fakeGateway) CompareSimilarity(_ context.Context, req pulse.SimilarityRequest) (*pulse.SimilarityResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.similarity = append(g.similarity, req)
	if err := g.record("similarity"); err != nil {
		return nil, err
	}
	a, b, scenario := req.SetA, req.SetB, pulse.ScenarioCross
	if req.IsSelf() {
		a, b, scenario = req.Set, req.Set, pulse.ScenarioSelf
	}
	m := make([][]float64, len(a))
	for i := range a {
		m[i] = make([]float64, len(b))
		for j := range b {
			m[i][j] = score(a[i], b[j])
		}
	}
	return &pulse.SimilarityResponse{Scenario: scenario, Mode: pulse.ModeMatrix, N: len(a), Matrix: m}, nil
}

// GenerateThemes returns two themes built from the first inputs.
func (g *fakeGateway) GenerateThemes(_ context.Context, req pulse.ThemesRequest) (*pulse.ThemesResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.themes = append(g.themes, req)
	if err := g.record("themes"); err != nil {
		return nil, err
	}
	n := min(2, len(req.Inputs))
	themes := make([]pulse.Theme, n)
	for i := range themes {
		text := req.Inputs[i]
		themes[i] = pulse.Theme{
			ShortLabel:      strings.Fields(text)[0],
			Label:           text,
			Representatives: []string{text, text},
		}
	}
	return &pulse.ThemesResponse{Themes: themes}, nil
}

func (g *fakeGateway) AnalyzeSentiment(_ context.Context, req pulse.SentimentRequest) (*pulse.SentimentResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sentiment = append(g.sentiment, req)
	if err := g.record("sentiment"); err != nil {
		return nil, err
	}
	out := make([]pulse.SentimentResult, len(req.Inputs))
	for i, text := range req.Inputs {
		out[i] = pulse.SentimentResult{Sentiment: pulse.SentimentNegative, Confidence: 0.6}
		if strings.Contains(text, "great") || strings.Contains(text, "loved") {
			out[i] = pulse.SentimentResult{Sentiment: pulse.SentimentPositive, Confidence: 0.9}
		}
	}
	return &pulse.SentimentResponse{Results: out}, nil
}

// ExtractElements returns each input whole under every theme.
func (g *fakeGateway) ExtractElements(_ context.Context, req pulse.ExtractionsRequest) (*pulse.ExtractionsResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.extract = append(g.extract, req)
	if err := g.record("extractions"); err != nil {
		return nil, err
	}
	out := make([][][]string, len(req.Inputs))
	for i, text := range req.Inputs {
		out[i] = make([][]string, len(req.Themes))
		for j := range req.Themes {
			out[i][j] = []string{text}
		}
	}
	return &pulse.ExtractionsResponse{Extractions: out}, nil
}

func (g *fakeGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed++
	return nil
}

func testOptions(g Gateway, opts ...Option) []Option {
	return append([]Option{WithGateway(g), WithLogger(logging.Discard())}, opts...)
}

func ptr[T any](v T) *T { return &v }
