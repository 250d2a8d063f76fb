package analysis

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exampleWorkflow = `
sources:
  staff_comments:
    - great staff
    - slow staff
pipeline:
  - theme_generation:
      min_themes: 2
      max_themes: 4
  - theme_allocation:
      threshold: 0.4
  - sentiment:
  - sentiment:
      source: staff_comments
      fast: false
  - cluster: {}
`

func TestParseWorkflow(t *testing.T) {
	w, err := ParseWorkflow(strings.NewReader(exampleWorkflow))
	require.NoError(t, err)

	steps := w.Steps()
	require.Equal(t, []string{"theme_generation", "theme_allocation", "sentiment", "sentiment_2", "cluster"}, stepIDs(steps))

	gen := steps[0].Process.(*ThemeGeneration)
	assert.Equal(t, 2, gen.MinThemes)
	assert.Equal(t, 4, gen.MaxThemes)
	require.NotNil(t, steps[1].Process.(*ThemeAllocation).Threshold)
	assert.Equal(t, 0.4, *steps[1].Process.(*ThemeAllocation).Threshold)
	assert.Equal(t, "staff_comments", steps[3].Input)
	require.NotNil(t, steps[3].Process.(*Sentiment).Fast)
	assert.False(t, *steps[3].Process.(*Sentiment).Fast)

	g := newFakeGateway()
	results, err := w.Run(context.Background(), comments, testOptions(g)...)
	require.NoError(t, err)
	assert.Equal(t, 5, results.Len())
	assert.Equal(t, []string{"great staff", "slow staff"}, g.sentiment[1].Inputs)
}

func TestParseWorkflow_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown step", "pipeline:\n  - summarise: {}\n"},
		{"two keys in one entry", "pipeline:\n  - sentiment: {}\n    cluster: {}\n"},
		{"entry is not a mapping", "pipeline:\n  - sentiment\n"},
		{"unknown parameter", "pipeline:\n  - sentiment:\n      colour: red\n"},
		{"duplicate name", "pipeline:\n  - sentiment: {name: a}\n  - cluster: {name: a}\n"},
		{"unknown source", "pipeline:\n  - cluster: {source: nowhere}\n"},
		{"empty document", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWorkflow(strings.NewReader(tt.doc))
			require.ErrorIs(t, err, ErrInvalidWorkflow)
		})
	}
}

func TestParseWorkflow_UnknownTopLevelKey(t *testing.T) {
	_, err := ParseWorkflow(strings.NewReader("steps:\n  - sentiment: {}\n"))
	require.Error(t, err)
}

func TestLoadWorkflowFile(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "flow.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"pipeline": [{"sentiment": {}}, {"cluster": null}]}`), 0o644))
	w, err := LoadWorkflowFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"sentiment", "cluster"}, stepIDs(w.Steps()))

	yamlPath := filepath.Join(dir, "flow.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(exampleWorkflow), 0o644))
	_, err = LoadWorkflowFile(yamlPath)
	require.NoError(t, err)

	_, err = LoadWorkflowFile(filepath.Join(dir, "flow.toml"))
	require.ErrorContains(t, err, "unsupported")

	_, err = LoadWorkflowFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestStepRegistry_Custom(t *testing.T) {
	reg := NewStepRegistry()
	reg.Register("word_count", func(w *Workflow, decode func(any) error) error {
		var opts struct {
			Name string `yaml:"name"`
		}
		if err := decode(&opts); err != nil {
			return err
		}
		w.Add(customProcess{}, opts.Name, "")
		return nil
	})
	assert.Contains(t, reg.Names(), "word_count")

	w, err := reg.Parse(strings.NewReader("pipeline:\n  - word_count: {name: words}\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"words"}, stepIDs(w.Steps()))

	_, err = ParseWorkflow(strings.NewReader("pipeline:\n  - word_count: {}\n"))
	require.ErrorIs(t, err, ErrInvalidWorkflow, "the default registry is unaffected")
}
