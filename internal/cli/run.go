package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/researchwiseai/pulse-go/pkg/analysis"
)

// stepOutput is one step's result as printed by run.
type stepOutput struct {
	Step   string `json:"step" yaml:"step"`
	Result any    `json:"result" yaml:"result"`
}

func newRunCmd() *cobra.Command {
	var only []string

	cmd := &cobra.Command{
		Use:   "run <workflow-file> <texts-file>",
		Short: "Run a workflow file over a dataset",
		Long: `run loads a YAML or JSON workflow, runs its pipeline over the texts in the
dataset file and prints every step's result in execution order.

A workflow file declares optional named sources and a pipeline of steps:

  sources:
    staff_comments: ["great staff", "slow staff"]
  pipeline:
    - theme_generation: {min_themes: 2, max_themes: 8}
    - theme_allocation: {threshold: 0.4}
    - sentiment: {source: staff_comments}`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := analysis.LoadWorkflowFile(args[0])
			if err != nil {
				return err
			}
			texts, err := analysis.ReadTexts(args[1])
			if err != nil {
				return err
			}

			client := newClient()
			defer client.Close()

			results, err := w.Run(cmd.Context(), texts, analysisOptions(cmd, client, 0)...)
			if err != nil {
				return err
			}

			ids := results.IDs()
			if len(only) > 0 {
				ids = only
			}
			out := make([]stepOutput, 0, len(ids))
			for _, id := range ids {
				v, err := results.Get(id)
				if err != nil {
					return err
				}
				out = append(out, stepOutput{Step: id, Result: v})
			}
			logger.Info("workflow complete", "steps", results.Len(), "texts", len(texts))
			return writeOutput(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringSliceVar(&only, "step", nil, "Print only these steps' results")
	return cmd
}

func newGraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph <workflow-file>",
		Short: "Print the dependency graph of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := analysis.LoadWorkflowFile(args[0])
			if err != nil {
				return err
			}
			if flagOutput != "text" {
				return writeOutput(cmd.OutOrStdout(), w.Graph())
			}

			g := w.Graph()
			for _, step := range w.Steps() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s <- [%s]\n", step.ID, strings.Join(g[step.ID], ", "))
			}
			return nil
		},
	}
}
