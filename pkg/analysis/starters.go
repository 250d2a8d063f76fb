package analysis

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FastLimit is the largest input the starters analyse in fast mode.
const FastLimit = 200

// SentimentAnalysis classifies texts in a single-step run.
func SentimentAnalysis(ctx context.Context, texts []string, opts ...Option) (*SentimentResult, error) {
	return runOne[*SentimentResult](ctx, texts, &Sentiment{}, opts)
}

// AllocateThemes assigns texts to themes. With no themes they are
// generated from the texts first.
func AllocateThemes(ctx context.Context, texts, themes []string, opts ...Option) (*ThemeAllocationResult, error) {
	return runOne[*ThemeAllocationResult](ctx, texts, &ThemeAllocation{Themes: themes}, opts)
}

// ClusterAnalysis computes the self-similarity of texts.
func ClusterAnalysis(ctx context.Context, texts []string, opts ...Option) (*ClusterResult, error) {
	return runOne[*ClusterResult](ctx, texts, &Cluster{}, opts)
}

// runOne runs p over texts, in fast mode for small inputs unless opts say
// otherwise, and returns its result.
func runOne[T any](ctx context.Context, texts []string, p Process, opts []Option) (T, error) {
	var zero T
	opts = append([]Option{WithFast(len(texts) <= FastLimit)}, opts...)
	a, err := NewAnalyzer(texts, []Process{p}, opts...)
	if err != nil {
		return zero, err
	}
	defer a.Close()

	results, err := a.Run(ctx)
	if err != nil {
		return zero, err
	}
	return ResultAs[T](results, string(p.Kind()))
}

// ReadTexts loads newline-delimited texts from a .txt (or extensionless)
// file, one per non-blank line with surrounding space trimmed.
func ReadTexts(path string) ([]string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".txt", "":
	default:
		return nil, fmt.Errorf("unsupported texts file type %q: want newline-delimited .txt", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open texts: %w", err)
	}
	defer f.Close()

	var texts []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			texts = append(texts, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read texts: %w", err)
	}
	return texts, nil
}
