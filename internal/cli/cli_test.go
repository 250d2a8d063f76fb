package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchwiseai/pulse-go/internal/fakeapi"
	"github.com/researchwiseai/pulse-go/internal/logging"
	"github.com/researchwiseai/pulse-go/pkg/pulse"
)

var testTexts = []string{
	"great friendly staff",
	"slow checkout queue",
	"loved the friendly staff",
	"long slow queue at checkout",
}

// startFakeAPI starts a fake Pulse API and returns it with its URL.
func startFakeAPI(t *testing.T, opts ...fakeapi.Option) (*fakeapi.Server, string) {
	t.Helper()
	srv := fakeapi.New(logging.Discard(), opts...)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, ts.URL
}

// writeFile writes content into the test's temp directory.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func writeTexts(t *testing.T) string {
	t.Helper()
	return writeFile(t, "texts.txt", strings.Join(testTexts, "\n")+"\n")
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))

	err := root.Execute()
	return buf.String(), err
}

func decodeOutput(t *testing.T, out string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("parse output: %v\noutput: %s", err, out)
	}
}

func TestSentimentCommand(t *testing.T) {
	srv, url := startFakeAPI(t)

	out, err := runCLI(t, "--base-url", url, "sentiment", writeTexts(t))
	require.NoError(t, err)

	var rows []struct {
		Text      string `json:"text"`
		Sentiment string `json:"sentiment"`
	}
	decodeOutput(t, out, &rows)
	require.Len(t, rows, 4)
	assert.Equal(t, "great friendly staff", rows[0].Text)
	assert.Equal(t, "positive", rows[0].Sentiment)
	assert.Equal(t, "negative", rows[1].Sentiment)
	assert.Equal(t, 1, srv.Count("sentiment"))
	assert.Zero(t, srv.Count("jobs"), "small inputs run in fast mode")
}

func TestSentimentCommand_Summary(t *testing.T) {
	_, url := startFakeAPI(t)

	out, err := runCLI(t, "--base-url", url, "sentiment", "--summary", writeTexts(t))
	require.NoError(t, err)

	var summary map[string]int
	decodeOutput(t, out, &summary)
	assert.Equal(t, map[string]int{"positive": 2, "negative": 2}, summary)
}

func TestThemesCommand(t *testing.T) {
	_, url := startFakeAPI(t)

	out, err := runCLI(t, "--base-url", url, "themes", "--min", "1", "--max", "3", writeTexts(t))
	require.NoError(t, err)

	var rows []map[string]string
	decodeOutput(t, out, &rows)
	assert.NotEmpty(t, rows)
	assert.LessOrEqual(t, len(rows), 3)
	assert.NotEmpty(t, rows[0]["short_label"])
}

func TestAllocateCommand_StaticThemes(t *testing.T) {
	srv, url := startFakeAPI(t)

	out, err := runCLI(t, "--base-url", url, "allocate",
		"--themes", "friendly staff,slow queue", "--threshold", "0", writeTexts(t))
	require.NoError(t, err)

	var rows []struct {
		Text  string `json:"text"`
		Theme string `json:"theme"`
	}
	decodeOutput(t, out, &rows)
	require.Len(t, rows, 4)
	assert.Equal(t, "friendly staff", rows[0].Theme)
	assert.Equal(t, "slow queue", rows[1].Theme)
	assert.Zero(t, srv.Count("themes"), "static themes skip generation")
}

func TestSimilarityCommand(t *testing.T) {
	_, url := startFakeAPI(t)
	texts := writeTexts(t)

	out, err := runCLI(t, "--base-url", url, "similarity", texts)
	require.NoError(t, err)
	var matrix [][]float64
	decodeOutput(t, out, &matrix)
	require.Len(t, matrix, 4)
	assert.Len(t, matrix[0], 4)

	other := writeFile(t, "other.txt", "friendly\nqueue\n")
	out, err = runCLI(t, "--base-url", url, "similarity", texts, other)
	require.NoError(t, err)
	decodeOutput(t, out, &matrix)
	require.Len(t, matrix, 4)
	assert.Len(t, matrix[0], 2)
}

func TestExtractCommand_RequiresThemes(t *testing.T) {
	_, url := startFakeAPI(t)

	_, err := runCLI(t, "--base-url", url, "extract", writeTexts(t))
	require.ErrorContains(t, err, "--themes")

	out, err := runCLI(t, "--base-url", url, "extract", "--themes", "staff", writeTexts(t))
	require.NoError(t, err)
	var rows []map[string]any
	decodeOutput(t, out, &rows)
	assert.Len(t, rows, 4)
}

func TestEmbeddingsCommand(t *testing.T) {
	_, url := startFakeAPI(t)

	out, err := runCLI(t, "--base-url", url, "embeddings", writeTexts(t))
	require.NoError(t, err)
	var docs []pulse.EmbeddingDocument
	decodeOutput(t, out, &docs)
	require.Len(t, docs, 4)
	assert.NotEmpty(t, docs[0].Vector)
}

const testWorkflow = `
sources:
  staff:
    - friendly staff
    - rude staff
pipeline:
  - theme_generation: {min_themes: 1, max_themes: 3}
  - theme_allocation: {threshold: 0.1}
  - sentiment: {source: staff}
`

func TestRunCommand(t *testing.T) {
	srv, url := startFakeAPI(t)
	flow := writeFile(t, "flow.yaml", testWorkflow)

	out, err := runCLI(t, "--base-url", url, "run", flow, writeTexts(t))
	require.NoError(t, err)

	var steps []struct {
		Step   string          `json:"step"`
		Result json.RawMessage `json:"result"`
	}
	decodeOutput(t, out, &steps)
	require.Len(t, steps, 3)
	assert.Equal(t, "theme_generation", steps[0].Step)
	assert.Equal(t, "theme_allocation", steps[1].Step)
	assert.Equal(t, "sentiment", steps[2].Step)
	assert.Equal(t, 1, srv.Count("themes"))

	out, err = runCLI(t, "--base-url", url, "run", "--step", "sentiment", flow, writeTexts(t))
	require.NoError(t, err)
	decodeOutput(t, out, &steps)
	require.Len(t, steps, 1)
}

func TestRunCommand_InvalidWorkflow(t *testing.T) {
	_, url := startFakeAPI(t)
	flow := writeFile(t, "flow.yaml", "pipeline:\n  - summarise: {}\n")

	_, err := runCLI(t, "--base-url", url, "run", flow, writeTexts(t))
	require.ErrorContains(t, err, "invalid workflow")
}

func TestGraphCommand(t *testing.T) {
	flow := writeFile(t, "flow.yaml", testWorkflow)

	out, err := runCLI(t, "--output", "text", "graph", flow)
	require.NoError(t, err)
	assert.Contains(t, out, "theme_allocation <- [theme_generation]")
	assert.Contains(t, out, "sentiment <- []")

	out, err = runCLI(t, "graph", flow)
	require.NoError(t, err)
	var g map[string][]string
	decodeOutput(t, out, &g)
	assert.Equal(t, []string{"theme_generation"}, g["theme_allocation"])
}

func TestJobCommand(t *testing.T) {
	_, url := startFakeAPI(t)

	tr := pulse.NewHTTPTransport(pulse.DefaultConfig().WithBaseURL(url), nil)
	defer tr.Close()
	sub, err := tr.Submit(context.Background(), pulse.OpSentiment, pulse.SentimentRequest{Inputs: []string{"great"}}, false)
	require.NoError(t, err)
	require.NotNil(t, sub.Job)

	out, err := runCLI(t, "--base-url", url, "job", "--wait", sub.Job.ID)
	require.NoError(t, err)

	var job struct {
		ID     string `json:"jobId"`
		Status string `json:"jobStatus"`
		Result struct {
			Results []pulse.SentimentResult `json:"results"`
		} `json:"result"`
	}
	decodeOutput(t, out, &job)
	assert.Equal(t, sub.Job.ID, job.ID)
	assert.Equal(t, "completed", job.Status)
	require.Len(t, job.Result.Results, 1)
	assert.Equal(t, "positive", job.Result.Results[0].Sentiment)
}

func TestCacheCommands(t *testing.T) {
	srv, url := startFakeAPI(t)
	dir := t.TempDir()
	texts := writeTexts(t)

	for range 2 {
		_, err := runCLI(t, "--base-url", url, "--cache-dir", dir, "sentiment", texts)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, srv.Count("sentiment"), "second run is served from the cache")

	out, err := runCLI(t, "--cache-dir", dir, "cache", "stats")
	require.NoError(t, err)
	var stats struct {
		Entries int `json:"entries"`
	}
	decodeOutput(t, out, &stats)
	assert.Equal(t, 1, stats.Entries)

	out, err = runCLI(t, "--cache-dir", dir, "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Cache cleared.")

	_, err = runCLI(t, "--base-url", url, "--cache-dir", dir, "sentiment", texts)
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Count("sentiment"))

	out, err = runCLI(t, "--cache-dir", dir, "cache", "prune", "--older-than", "0s")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1 entries.")
}

func TestCacheCommands_Unconfigured(t *testing.T) {
	t.Setenv("PULSE_CACHE_DIR", "")
	t.Setenv("PULSE_REDIS_URL", "")

	_, err := runCLI(t, "cache", "clear")
	require.ErrorContains(t, err, "no cache configured")
}

func TestYAMLOutput(t *testing.T) {
	_, url := startFakeAPI(t)

	out, err := runCLI(t, "--base-url", url, "-o", "yaml", "sentiment", "--summary", writeTexts(t))
	require.NoError(t, err)
	assert.Contains(t, out, "positive: 2")

	_, err = runCLI(t, "--base-url", url, "-o", "xml", "sentiment", writeTexts(t))
	require.ErrorContains(t, err, "unknown output format")
}
