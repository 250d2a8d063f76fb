package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/researchwiseai/pulse-go/pkg/analysis"
	"github.com/researchwiseai/pulse-go/pkg/pulse"
)

// Cached entries in Redis expire after this long.
const redisTTL = 7 * 24 * time.Hour

// newClient creates a Pulse API client from the resolved configuration.
func newClient() *pulse.Client {
	return pulse.NewClient(cfg.ClientConfig(), logger)
}

// analysisOptions returns the analyzer options implied by the configuration
// and the --fast flag. A positive size selects fast mode for inputs of at most
// analysis.FastLimit texts unless --fast is given. Closing client stays with
// the caller.
func analysisOptions(cmd *cobra.Command, client *pulse.Client, size int) []analysis.Option {
	opts := []analysis.Option{
		analysis.WithGateway(client),
		analysis.WithLogger(logger),
	}
	switch {
	case cmd.Flags().Changed("fast"):
		opts = append(opts, analysis.WithFast(flagFast))
	case size > 0:
		opts = append(opts, analysis.WithFast(size <= analysis.FastLimit))
	}
	switch {
	case cfg.RedisURL != "":
		opts = append(opts, analysis.WithRedisCache(cfg.RedisURL, redisTTL))
	case cfg.CacheDir != "":
		opts = append(opts, analysis.WithCacheDir(cfg.CacheDir))
	}
	return opts
}

// fastFlag reports the --fast flag, falling back to def when it was not set.
func fastFlag(cmd *cobra.Command, def bool) bool {
	if cmd.Flags().Changed("fast") {
		return flagFast
	}
	return def
}

// writeOutput renders v to the command's stdout in the --output format.
func writeOutput(w io.Writer, v any) error {
	switch flagOutput {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
	return fmt.Errorf("unknown output format %q", flagOutput)
}
