package analysis

import (
	"fmt"
	"sort"

	"github.com/researchwiseai/pulse-go/pkg/pulse"
)

// Results holds the wrapped result of each executed step, keyed by step
// identifier, in execution order.
type Results struct {
	order []string
	byID  map[string]any
}

func newResults() *Results {
	return &Results{byID: make(map[string]any)}
}

func (r *Results) add(id string, v any) {
	if _, ok := r.byID[id]; !ok {
		r.order = append(r.order, id)
	}
	r.byID[id] = v
}

// Get returns the result recorded under id.
func (r *Results) Get(id string) (any, error) {
	v, ok := r.byID[id]
	if !ok {
		return nil, &MissingResultError{ID: id}
	}
	return v, nil
}

// IDs returns the step identifiers in execution order.
func (r *Results) IDs() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of recorded results.
func (r *Results) Len() int { return len(r.order) }

// ResultAs returns the result recorded under id as T.
func ResultAs[T any](r *Results, id string) (T, error) {
	var zero T
	v, err := r.Get(id)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("result %q is %T, not %T", id, v, zero)
	}
	return out, nil
}

// ThemeGenerationResult holds generated themes.
type ThemeGenerationResult struct {
	Texts  []string      `json:"texts"`
	Themes []pulse.Theme `json:"themes"`
}

// ThemeRow is one theme in tabular form.
type ThemeRow struct {
	ShortLabel      string `json:"short_label" yaml:"short_label"`
	Label           string `json:"label" yaml:"label"`
	Description     string `json:"description" yaml:"description"`
	Representative1 string `json:"representative_1" yaml:"representative_1"`
	Representative2 string `json:"representative_2" yaml:"representative_2"`
}

// Rows returns one row per theme.
func (r *ThemeGenerationResult) Rows() []ThemeRow {
	rows := make([]ThemeRow, len(r.Themes))
	for i, t := range r.Themes {
		rows[i] = ThemeRow{ShortLabel: t.ShortLabel, Label: t.Label, Description: t.Description}
		if len(t.Representatives) > 0 {
			rows[i].Representative1 = t.Representatives[0]
		}
		if len(t.Representatives) > 1 {
			rows[i].Representative2 = t.Representatives[1]
		}
	}
	return rows
}

// SentimentResult holds per-text sentiment. Nested is set when the step ran
// over a nested source; it mirrors the source's shape with labels in place
// of texts.
type SentimentResult struct {
	Texts   []string                `json:"texts"`
	Results []pulse.SentimentResult `json:"results"`
	Nested  []any                   `json:"nested,omitempty"`
}

// SentimentRow is one classified text.
type SentimentRow struct {
	Text       string  `json:"text" yaml:"text"`
	Sentiment  string  `json:"sentiment" yaml:"sentiment"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// Labels returns the sentiment label of each text.
func (r *SentimentResult) Labels() []string {
	out := make([]string, len(r.Results))
	for i, res := range r.Results {
		out[i] = res.Sentiment
	}
	return out
}

// Summary counts texts per sentiment label.
func (r *SentimentResult) Summary() map[string]int {
	counts := make(map[string]int)
	for _, res := range r.Results {
		counts[res.Sentiment]++
	}
	return counts
}

// Rows returns one row per text.
func (r *SentimentResult) Rows() []SentimentRow {
	rows := make([]SentimentRow, len(r.Results))
	for i, res := range r.Results {
		rows[i] = SentimentRow{Sentiment: res.Sentiment, Confidence: res.Confidence}
		if i < len(r.Texts) {
			rows[i].Text = r.Texts[i]
		}
	}
	return rows
}

// ThemeAllocationResult holds the similarity of each text to each theme and
// the best theme per text.
type ThemeAllocationResult struct {
	Texts       []string    `json:"texts"`
	Themes      []string    `json:"themes"`
	Assignments []int       `json:"assignments"`
	Similarity  [][]float64 `json:"similarity"`
	SingleLabel bool        `json:"singleLabel"`
	Threshold   float64     `json:"threshold"`
}

// Assign labels each text using the step's own threshold.
func (r *ThemeAllocationResult) Assign() []string {
	return r.AssignSingle(r.Threshold)
}

// AssignSingle returns the best theme for each text, or "" where the best
// score is below threshold. Without similarity scores the recorded
// assignments are used as is.
func (r *ThemeAllocationResult) AssignSingle(threshold float64) []string {
	out := make([]string, len(r.Assignments))
	for i, a := range r.Assignments {
		if len(r.Similarity) == 0 {
			out[i] = r.Themes[a]
			continue
		}
		row := r.Similarity[i]
		best := argmax(row)
		if len(row) > 0 && row[best] >= threshold {
			out[i] = r.Themes[best]
		}
	}
	return out
}

// AssignMulti returns, for each text, its k best themes in descending score
// order. k <= 0 means all themes.
func (r *ThemeAllocationResult) AssignMulti(k int) [][]string {
	if k <= 0 || k > len(r.Themes) {
		k = len(r.Themes)
	}
	out := make([][]string, len(r.Similarity))
	for i, row := range r.Similarity {
		idx := make([]int, len(row))
		for j := range idx {
			idx[j] = j
		}
		sort.SliceStable(idx, func(a, b int) bool { return row[idx[a]] > row[idx[b]] })
		labels := make([]string, 0, k)
		for _, j := range idx[:min(k, len(idx))] {
			labels = append(labels, r.Themes[j])
		}
		out[i] = labels
	}
	return out
}

// Counts returns the number of texts assigned to each theme.
func (r *ThemeAllocationResult) Counts() map[string]int {
	counts := make(map[string]int, len(r.Themes))
	for _, a := range r.Assignments {
		counts[r.Themes[a]]++
	}
	return counts
}

// AllocationRow is one text-theme score.
type AllocationRow struct {
	Text  string  `json:"text" yaml:"text"`
	Theme string  `json:"theme" yaml:"theme"`
	Score float64 `json:"score" yaml:"score"`
}

// Rows returns one row per text and theme.
func (r *ThemeAllocationResult) Rows() []AllocationRow {
	var rows []AllocationRow
	for i, text := range r.Texts {
		for j, theme := range r.Themes {
			row := AllocationRow{Text: text, Theme: theme}
			if i < len(r.Similarity) && j < len(r.Similarity[i]) {
				row.Score = r.Similarity[i][j]
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// ClusterResult holds the self-similarity matrix of the texts.
type ClusterResult struct {
	Texts  []string    `json:"texts"`
	Matrix [][]float64 `json:"matrix"`
}

// Nearest returns, for each text, the indices of its k most similar other
// texts in descending order.
func (r *ClusterResult) Nearest(k int) [][]int {
	out := make([][]int, len(r.Matrix))
	for i, row := range r.Matrix {
		idx := make([]int, 0, len(row))
		for j := range row {
			if j != i {
				idx = append(idx, j)
			}
		}
		sort.SliceStable(idx, func(a, b int) bool { return row[idx[a]] > row[idx[b]] })
		out[i] = idx[:min(k, len(idx))]
	}
	return out
}

// ThemeExtractionResult holds the extracted elements, shaped
// [text][theme][element].
type ThemeExtractionResult struct {
	Texts       []string     `json:"texts"`
	Themes      []string     `json:"themes"`
	Extractions [][][]string `json:"extractions"`
}

// ExtractionRow is the elements of one text for one theme.
type ExtractionRow struct {
	Text     string   `json:"text" yaml:"text"`
	Theme    string   `json:"theme" yaml:"theme"`
	Elements []string `json:"elements" yaml:"elements"`
}

// Rows returns one row per text and theme.
func (r *ThemeExtractionResult) Rows() []ExtractionRow {
	var rows []ExtractionRow
	for i, perTheme := range r.Extractions {
		for j, elems := range perTheme {
			row := ExtractionRow{Elements: elems}
			if i < len(r.Texts) {
				row.Text = r.Texts[i]
			}
			if j < len(r.Themes) {
				row.Theme = r.Themes[j]
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// wrap converts a raw process payload into the result type for its kind.
// Payloads of other kinds are returned unchanged.
func wrap(p Process, raw any, texts []string) (any, error) {
	mismatch := func() error {
		return fmt.Errorf("%s returned %T", p.Kind(), raw)
	}
	switch p.Kind() {
	case KindThemeGeneration:
		resp, ok := raw.(*pulse.ThemesResponse)
		if !ok {
			return nil, mismatch()
		}
		return &ThemeGenerationResult{Texts: texts, Themes: resp.Themes}, nil

	case KindSentiment:
		resp, ok := raw.(*pulse.SentimentResponse)
		if !ok {
			return nil, mismatch()
		}
		return &SentimentResult{Texts: texts, Results: resp.Results}, nil

	case KindThemeAllocation:
		payload, ok := raw.(*AllocationPayload)
		if !ok {
			return nil, mismatch()
		}
		res := &ThemeAllocationResult{
			Texts:       texts,
			Themes:      payload.Themes,
			Assignments: payload.Assignments,
			Similarity:  payload.Similarity,
			SingleLabel: true,
			Threshold:   DefaultThreshold,
		}
		if a, ok := p.(*ThemeAllocation); ok {
			res.SingleLabel = !a.MultiLabel
			res.Threshold = a.threshold()
		}
		return res, nil

	case KindCluster:
		m, ok := raw.([][]float64)
		if !ok {
			return nil, mismatch()
		}
		return &ClusterResult{Texts: texts, Matrix: m}, nil

	case KindThemeExtraction:
		payload, ok := raw.(*ExtractionPayload)
		if !ok {
			return nil, mismatch()
		}
		return &ThemeExtractionResult{Texts: texts, Themes: payload.Themes, Extractions: payload.Extractions}, nil
	}
	return raw, nil
}
