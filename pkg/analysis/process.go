// Package analysis composes Pulse API operations into workflows: theme
// generation, sentiment, theme allocation, theme extraction and clustering,
// executed in order over a dataset with optional result caching.
package analysis

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/researchwiseai/pulse-go/pkg/pulse"
)

// Kind identifies a process type. Step identifiers default to the kind.
type Kind string

const (
	KindThemeGeneration Kind = "theme_generation"
	KindSentiment       Kind = "sentiment"
	KindThemeAllocation Kind = "theme_allocation"
	KindThemeExtraction Kind = "theme_extraction"
	KindCluster         Kind = "cluster"
)

// Theme generation sampling caps and defaults.
const (
	GenerationSampleSize     = 1000
	GenerationFastSampleSize = 200
	DefaultMinThemes         = 2
	DefaultMaxThemes         = 50
	DefaultThreshold         = 0.5
)

// Gateway is the subset of the Pulse client used by processes.
// *pulse.Client satisfies it.
type Gateway interface {
	CompareSimilarity(ctx context.Context, req pulse.SimilarityRequest) (*pulse.SimilarityResponse, error)
	GenerateThemes(ctx context.Context, req pulse.ThemesRequest) (*pulse.ThemesResponse, error)
	AnalyzeSentiment(ctx context.Context, req pulse.SentimentRequest) (*pulse.SentimentResponse, error)
	ExtractElements(ctx context.Context, req pulse.ExtractionsRequest) (*pulse.ExtractionsResponse, error)
	Close() error
}

var _ Gateway = (*pulse.Client)(nil)

// Process is one analysis step.
type Process interface {
	// Kind returns the process type.
	Kind() Kind

	// DependsOn lists the kinds this process structurally consumes.
	DependsOn() []Kind

	// Params returns the public parameters that determine the result. They
	// feed the cache key.
	Params() map[string]any

	// Execute runs the process and returns its raw payload.
	Execute(ctx context.Context, rc *RunContext) (any, error)
}

// fastOverrider is implemented by processes with a step-level fast flag.
type fastOverrider interface {
	FastOverride() *bool
}

// themed is implemented by processes that need a theme vocabulary.
type themed interface {
	StaticThemes() []string
}

// RunContext is the read-only view handed to a process for one execution.
type RunContext struct {
	Step       string
	Dataset    []string
	Fast       bool
	Gateway    Gateway
	ThemesFrom string
	Logger     *slog.Logger

	results *Results
	sources map[string]any
}

// Result returns a prior step's wrapped result.
func (rc *RunContext) Result(id string) (any, bool) {
	if rc.results == nil {
		return nil, false
	}
	v, err := rc.results.Get(id)
	return v, err == nil
}

// Source returns a named source.
func (rc *RunContext) Source(alias string) (any, bool) {
	v, ok := rc.sources[alias]
	return v, ok
}

// ThemeGeneration derives themes from the texts.
type ThemeGeneration struct {
	MinThemes int
	MaxThemes int
	Fast      *bool
}

func (p *ThemeGeneration) Kind() Kind          { return KindThemeGeneration }
func (p *ThemeGeneration) DependsOn() []Kind   { return nil }
func (p *ThemeGeneration) FastOverride() *bool { return p.Fast }

func (p *ThemeGeneration) Params() map[string]any {
	return map[string]any{
		"min_themes": p.minThemes(),
		"max_themes": p.maxThemes(),
	}
}

func (p *ThemeGeneration) minThemes() int {
	if p.MinThemes <= 0 {
		return DefaultMinThemes
	}
	return p.MinThemes
}

func (p *ThemeGeneration) maxThemes() int {
	if p.MaxThemes <= 0 {
		return DefaultMaxThemes
	}
	return p.MaxThemes
}

// Execute samples the texts down to the generation cap and requests themes.
func (p *ThemeGeneration) Execute(ctx context.Context, rc *RunContext) (any, error) {
	limit := GenerationSampleSize
	if rc.Fast {
		limit = GenerationFastSampleSize
	}
	texts := sample(rc.Dataset, limit)
	if len(texts) < len(rc.Dataset) {
		rc.Logger.Debug("sampled generation input", "from", len(rc.Dataset), "to", len(texts))
	}
	return rc.Gateway.GenerateThemes(ctx, pulse.ThemesRequest{
		Inputs:    texts,
		MinThemes: p.minThemes(),
		MaxThemes: p.maxThemes(),
		Fast:      rc.Fast,
	})
}

// sample returns n texts chosen uniformly at random, or texts itself when it
// is no longer than n.
func sample(texts []string, n int) []string {
	if len(texts) <= n {
		return texts
	}
	out := make([]string, n)
	for i, idx := range rand.Perm(len(texts))[:n] {
		out[i] = texts[idx]
	}
	return out
}

// Sentiment classifies each text.
type Sentiment struct {
	Fast *bool
}

func (p *Sentiment) Kind() Kind             { return KindSentiment }
func (p *Sentiment) DependsOn() []Kind      { return nil }
func (p *Sentiment) Params() map[string]any { return map[string]any{} }
func (p *Sentiment) FastOverride() *bool    { return p.Fast }

func (p *Sentiment) Execute(ctx context.Context, rc *RunContext) (any, error) {
	return rc.Gateway.AnalyzeSentiment(ctx, pulse.SentimentRequest{Inputs: rc.Dataset, Fast: rc.Fast})
}

// AllocationPayload is the raw output of ThemeAllocation.
type AllocationPayload struct {
	Themes      []string    `json:"themes"`
	Assignments []int       `json:"assignments"`
	Similarity  [][]float64 `json:"similarity"`
}

// ThemeAllocation assigns each text to its most similar theme. Without
// static Themes the vocabulary comes from a theme generation step or a named
// source.
type ThemeAllocation struct {
	Themes []string
	// MultiLabel switches the wrapped result to multi-label interpretation.
	MultiLabel bool
	// Threshold is the minimum score for a single-label assignment; nil
	// means DefaultThreshold.
	Threshold *float64
	Fast      *bool
}

func (p *ThemeAllocation) Kind() Kind             { return KindThemeAllocation }
func (p *ThemeAllocation) DependsOn() []Kind      { return []Kind{KindThemeGeneration} }
func (p *ThemeAllocation) FastOverride() *bool    { return p.Fast }
func (p *ThemeAllocation) StaticThemes() []string { return p.Themes }

func (p *ThemeAllocation) Params() map[string]any {
	return map[string]any{
		"themes":       p.Themes,
		"single_label": !p.MultiLabel,
		"threshold":    p.threshold(),
	}
}

func (p *ThemeAllocation) threshold() float64 {
	if p.Threshold == nil {
		return DefaultThreshold
	}
	return *p.Threshold
}

// Execute compares the texts against the theme representations and picks
// the best-scoring theme per text.
func (p *ThemeAllocation) Execute(ctx context.Context, rc *RunContext) (any, error) {
	vocab, err := resolveVocabulary(rc, p.Themes)
	if err != nil {
		return nil, err
	}
	out := &AllocationPayload{
		Themes:      vocab.Labels,
		Assignments: []int{},
		Similarity:  [][]float64{},
	}
	if len(rc.Dataset) == 0 || len(vocab.Labels) == 0 {
		return out, nil
	}

	resp, err := rc.Gateway.CompareSimilarity(ctx, pulse.SimilarityRequest{
		SetA: rc.Dataset,
		SetB: vocab.Texts,
		Fast: rc.Fast,
	})
	if err != nil {
		return nil, err
	}
	sim, err := resp.Similarity()
	if err != nil {
		return nil, err
	}
	out.Similarity = sim
	out.Assignments = make([]int, len(sim))
	for i, row := range sim {
		out.Assignments[i] = argmax(row)
	}
	return out, nil
}

func argmax(row []float64) int {
	best := 0
	for j, v := range row {
		if v > row[best] {
			best = j
		}
	}
	return best
}

// ExtractionPayload is the raw output of ThemeExtraction.
type ExtractionPayload struct {
	Themes      []string     `json:"themes"`
	Extractions [][][]string `json:"extractions"`
}

// ThemeExtraction extracts the elements of each text that relate to each
// theme. Vocabulary resolution matches ThemeAllocation.
type ThemeExtraction struct {
	Themes  []string
	Version string
	Fast    *bool
}

func (p *ThemeExtraction) Kind() Kind             { return KindThemeExtraction }
func (p *ThemeExtraction) DependsOn() []Kind      { return []Kind{KindThemeGeneration} }
func (p *ThemeExtraction) FastOverride() *bool    { return p.Fast }
func (p *ThemeExtraction) StaticThemes() []string { return p.Themes }

func (p *ThemeExtraction) Params() map[string]any {
	return map[string]any{
		"themes":  p.Themes,
		"version": p.Version,
	}
}

func (p *ThemeExtraction) Execute(ctx context.Context, rc *RunContext) (any, error) {
	vocab, err := resolveVocabulary(rc, p.Themes)
	if err != nil {
		return nil, err
	}
	resp, err := rc.Gateway.ExtractElements(ctx, pulse.ExtractionsRequest{
		Inputs:  rc.Dataset,
		Themes:  vocab.Labels,
		Version: p.Version,
		Fast:    rc.Fast,
	})
	if err != nil {
		return nil, err
	}
	return &ExtractionPayload{Themes: vocab.Labels, Extractions: resp.Extractions}, nil
}

// Cluster computes the full self-similarity matrix of the texts.
type Cluster struct {
	Fast *bool
}

func (p *Cluster) Kind() Kind             { return KindCluster }
func (p *Cluster) DependsOn() []Kind      { return nil }
func (p *Cluster) Params() map[string]any { return map[string]any{} }
func (p *Cluster) FastOverride() *bool    { return p.Fast }

func (p *Cluster) Execute(ctx context.Context, rc *RunContext) (any, error) {
	resp, err := rc.Gateway.CompareSimilarity(ctx, pulse.SimilarityRequest{
		Set:  rc.Dataset,
		Fast: rc.Fast,
	})
	if err != nil {
		return nil, err
	}
	return resp.Similarity()
}

// vocabulary is a resolved theme list: Labels name the themes, Texts are
// what texts are compared against.
type vocabulary struct {
	Labels []string
	Texts  []string
}

// resolveVocabulary returns static themes when given, otherwise the themes
// of the step named by rc.ThemesFrom (default theme_generation), otherwise
// the named source of that alias.
func resolveVocabulary(rc *RunContext, static []string) (vocabulary, error) {
	if len(static) > 0 {
		return vocabulary{Labels: static, Texts: static}, nil
	}

	alias := rc.ThemesFrom
	if alias == "" {
		alias = string(KindThemeGeneration)
	}
	if v, ok := rc.Result(alias); ok {
		if gen, ok := v.(*ThemeGenerationResult); ok {
			return themeVocabulary(gen.Themes), nil
		}
	}
	if v, ok := rc.Source(alias); ok {
		switch src := v.(type) {
		case []pulse.Theme:
			return themeVocabulary(src), nil
		default:
			if texts, err := textList(src); err == nil {
				return vocabulary{Labels: texts, Texts: texts}, nil
			}
		}
		return vocabulary{}, &ConfigError{Step: rc.Step, Source: alias, Msg: "source is not a theme list"}
	}
	return vocabulary{}, &ConfigError{Step: rc.Step, Source: alias, Msg: "no theme vocabulary: give themes or add a theme generation step"}
}

func themeVocabulary(themes []pulse.Theme) vocabulary {
	v := vocabulary{
		Labels: make([]string, len(themes)),
		Texts:  make([]string, len(themes)),
	}
	for i, t := range themes {
		v.Labels[i] = t.ShortLabel
		if v.Labels[i] == "" {
			v.Labels[i] = t.Label
		}
		v.Texts[i] = strings.Join(t.Representatives, " ")
	}
	return v
}
