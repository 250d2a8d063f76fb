package pulse

import (
	"encoding/json"
	"fmt"
)

// Operation names a Pulse API endpoint.
type Operation string

const (
	OpSimilarity  Operation = "similarity"
	OpThemes      Operation = "themes"
	OpSentiment   Operation = "sentiment"
	OpExtractions Operation = "extractions"
	OpEmbeddings  Operation = "embeddings"
)

// Path returns the endpoint path relative to the base URL.
func (o Operation) Path() string {
	return "/" + string(o)
}

// SimilarityRequest is the body of a similarity request. Exactly one of Set
// or the SetA/SetB pair must be given.
type SimilarityRequest struct {
	Set     []string `json:"set,omitempty"`
	SetA    []string `json:"set_a,omitempty"`
	SetB    []string `json:"set_b,omitempty"`
	Fast    bool     `json:"fast,omitempty"`
	Flatten bool     `json:"flatten"`
}

// IsSelf reports whether the request compares one set against itself.
func (r SimilarityRequest) IsSelf() bool {
	return r.SetA == nil && r.SetB == nil
}

// Validate checks that exactly one comparison shape is present.
func (r SimilarityRequest) Validate() error {
	switch {
	case r.Set != nil && (r.SetA != nil || r.SetB != nil):
		return fmt.Errorf("%w: set and set_a/set_b are mutually exclusive", ErrInvalidRequest)
	case r.Set == nil && (r.SetA == nil || r.SetB == nil):
		return fmt.Errorf("%w: either set or both set_a and set_b are required", ErrInvalidRequest)
	}
	return nil
}

// ThemesRequest is the body of a theme generation request.
type ThemesRequest struct {
	Inputs    []string `json:"inputs"`
	MinThemes int      `json:"minThemes,omitempty"`
	MaxThemes int      `json:"maxThemes,omitempty"`
	Fast      bool     `json:"fast,omitempty"`
}

// SentimentRequest is the body of a sentiment request.
type SentimentRequest struct {
	Inputs []string `json:"inputs"`
	Fast   bool     `json:"fast,omitempty"`
}

// ExtractionsRequest is the body of an element extraction request.
type ExtractionsRequest struct {
	Inputs  []string `json:"inputs"`
	Themes  []string `json:"themes"`
	Version string   `json:"version,omitempty"`
	Fast    bool     `json:"fast,omitempty"`
}

// EmbeddingsRequest is the body of an embeddings request.
type EmbeddingsRequest struct {
	Inputs []string `json:"inputs"`
	Fast   bool     `json:"fast,omitempty"`
}

// Similarity scenarios and representation modes.
const (
	ScenarioSelf  = "self"
	ScenarioCross = "cross"

	ModeMatrix    = "matrix"
	ModeFlattened = "flattened"
)

// SimilarityResponse is the result of a similarity request.
type SimilarityResponse struct {
	Scenario  string      `json:"scenario"`
	Mode      string      `json:"mode"`
	N         int         `json:"n"`
	Flattened []float64   `json:"flattened"`
	Matrix    [][]float64 `json:"matrix,omitempty"`
	RequestID string      `json:"requestId,omitempty"`
}

// Similarity returns the full similarity matrix, reconstructing it from the
// flattened form when the matrix was not sent.
func (r *SimilarityResponse) Similarity() ([][]float64, error) {
	if len(r.Matrix) > 0 {
		return r.Matrix, nil
	}

	flat := r.Flattened
	switch r.Scenario {
	case ScenarioSelf:
		n := r.N
		mat := make([][]float64, n)
		for i := range mat {
			mat[i] = make([]float64, n)
		}
		idx := 0
		switch len(flat) {
		case n * (n + 1) / 2:
			for i := 0; i < n; i++ {
				for j := i; j < n; j++ {
					mat[i][j], mat[j][i] = flat[idx], flat[idx]
					idx++
				}
			}
		case n * (n - 1) / 2:
			for i := 0; i < n; i++ {
				mat[i][i] = 1
				for j := i + 1; j < n; j++ {
					mat[i][j], mat[j][i] = flat[idx], flat[idx]
					idx++
				}
			}
		default:
			return nil, fmt.Errorf("unexpected length %d for self-similarity with n=%d", len(flat), n)
		}
		return mat, nil

	case ScenarioCross:
		n := r.N
		if n <= 0 || len(flat)%n != 0 {
			return nil, fmt.Errorf("cannot reshape flattened length %d into %d rows", len(flat), n)
		}
		m := len(flat) / n
		mat := make([][]float64, n)
		for i := range mat {
			mat[i] = flat[i*m : (i+1)*m : (i+1)*m]
		}
		return mat, nil
	}
	return nil, fmt.Errorf("unknown similarity scenario %q", r.Scenario)
}

// Theme is a single generated theme.
type Theme struct {
	ShortLabel      string   `json:"shortLabel" yaml:"shortLabel"`
	Label           string   `json:"label" yaml:"label"`
	Description     string   `json:"description" yaml:"description"`
	Representatives []string `json:"representatives" yaml:"representatives"`
}

// ThemesResponse is the result of a theme generation request.
type ThemesResponse struct {
	Themes    []Theme `json:"themes"`
	RequestID string  `json:"requestId,omitempty"`
}

// Sentiment labels.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
	SentimentMixed    = "mixed"
)

// SentimentResult is the classification of a single text.
type SentimentResult struct {
	Sentiment  string  `json:"sentiment"`
	Confidence float64 `json:"confidence"`
}

// SentimentResponse is the result of a sentiment request.
type SentimentResponse struct {
	Results   []SentimentResult `json:"results"`
	RequestID string            `json:"requestId,omitempty"`
}

var legacySentiments = map[string]string{
	"pos": SentimentPositive,
	"neg": SentimentNegative,
	"neu": SentimentNeutral,
}

// UnmarshalJSON accepts both the current results form and the legacy
// "sentiments" shorthand list.
func (r *SentimentResponse) UnmarshalJSON(data []byte) error {
	var raw struct {
		Results    []SentimentResult `json:"results"`
		Sentiments []string          `json:"sentiments"`
		RequestID  string            `json:"requestId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.RequestID = raw.RequestID
	r.Results = raw.Results
	if raw.Sentiments != nil {
		r.Results = make([]SentimentResult, len(raw.Sentiments))
		for i, s := range raw.Sentiments {
			if full, ok := legacySentiments[s]; ok {
				s = full
			}
			r.Results[i] = SentimentResult{Sentiment: s}
		}
	}
	return nil
}

// Labels returns the sentiment label of each result.
func (r *SentimentResponse) Labels() []string {
	out := make([]string, len(r.Results))
	for i, res := range r.Results {
		out[i] = res.Sentiment
	}
	return out
}

// ExtractionsResponse holds extracted elements shaped [inputs][themes][k].
type ExtractionsResponse struct {
	Extractions [][][]string `json:"extractions"`
	RequestID   string       `json:"requestId,omitempty"`
}

// EmbeddingDocument is one embedded text.
type EmbeddingDocument struct {
	ID     string    `json:"id,omitempty"`
	Text   string    `json:"text"`
	Vector []float64 `json:"vector"`
}

// EmbeddingsResponse is the result of an embeddings request.
type EmbeddingsResponse struct {
	Embeddings []EmbeddingDocument `json:"embeddings"`
	RequestID  string              `json:"requestId,omitempty"`
}

// UnmarshalResult decodes a raw result payload into T.
func UnmarshalResult[T any](raw json.RawMessage) (T, error) {
	var result T
	if len(raw) == 0 {
		return result, nil
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("unmarshaling result: %w", err)
	}
	return result, nil
}
