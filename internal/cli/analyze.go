package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/researchwiseai/pulse-go/pkg/analysis"
	"github.com/researchwiseai/pulse-go/pkg/pulse"
)

func newThemesCmd() *cobra.Command {
	var minThemes, maxThemes int

	cmd := &cobra.Command{
		Use:   "themes <texts-file>",
		Short: "Generate themes from a set of texts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			texts, err := analysis.ReadTexts(args[0])
			if err != nil {
				return err
			}
			client := newClient()
			defer client.Close()

			w := analysis.NewWorkflow().ThemeGeneration(analysis.GenerationOptions{
				MinThemes: minThemes,
				MaxThemes: maxThemes,
			})
			results, err := w.Run(cmd.Context(), texts, analysisOptions(cmd, client, len(texts))...)
			if err != nil {
				return err
			}
			gen, err := analysis.ResultAs[*analysis.ThemeGenerationResult](results, string(analysis.KindThemeGeneration))
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), gen.Rows())
		},
	}

	cmd.Flags().IntVar(&minThemes, "min", analysis.DefaultMinThemes, "Minimum number of themes")
	cmd.Flags().IntVar(&maxThemes, "max", analysis.DefaultMaxThemes, "Maximum number of themes")
	return cmd
}

func newAllocateCmd() *cobra.Command {
	var themes []string
	var threshold float64
	var top int

	cmd := &cobra.Command{
		Use:   "allocate <texts-file>",
		Short: "Assign each text to its closest theme",
		Long: `allocate scores every text against a theme vocabulary and prints the best
theme per text. Without --themes the vocabulary is generated from the texts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			texts, err := analysis.ReadTexts(args[0])
			if err != nil {
				return err
			}
			client := newClient()
			defer client.Close()

			res, err := analysis.AllocateThemes(cmd.Context(), texts, themes, analysisOptions(cmd, client, len(texts))...)
			if err != nil {
				return err
			}

			type row struct {
				Text   string   `json:"text" yaml:"text"`
				Theme  string   `json:"theme,omitempty" yaml:"theme,omitempty"`
				Themes []string `json:"themes,omitempty" yaml:"themes,omitempty"`
			}
			rows := make([]row, len(res.Texts))
			if top > 0 {
				for i, labels := range res.AssignMulti(top) {
					rows[i] = row{Text: res.Texts[i], Themes: labels}
				}
			} else {
				for i, label := range res.AssignSingle(threshold) {
					rows[i] = row{Text: res.Texts[i], Theme: label}
				}
			}
			return writeOutput(cmd.OutOrStdout(), rows)
		},
	}

	cmd.Flags().StringSliceVar(&themes, "themes", nil, "Theme vocabulary (comma separated)")
	cmd.Flags().Float64Var(&threshold, "threshold", analysis.DefaultThreshold, "Minimum score for an assignment")
	cmd.Flags().IntVar(&top, "top", 0, "Print the k best themes per text instead of one")
	return cmd
}

func newSentimentCmd() *cobra.Command {
	var summary bool

	cmd := &cobra.Command{
		Use:   "sentiment <texts-file>",
		Short: "Classify the sentiment of each text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			texts, err := analysis.ReadTexts(args[0])
			if err != nil {
				return err
			}
			client := newClient()
			defer client.Close()

			res, err := analysis.SentimentAnalysis(cmd.Context(), texts, analysisOptions(cmd, client, len(texts))...)
			if err != nil {
				return err
			}
			if summary {
				return writeOutput(cmd.OutOrStdout(), res.Summary())
			}
			return writeOutput(cmd.OutOrStdout(), res.Rows())
		},
	}

	cmd.Flags().BoolVar(&summary, "summary", false, "Print label counts only")
	return cmd
}

func newSimilarityCmd() *cobra.Command {
	var flatten bool

	cmd := &cobra.Command{
		Use:   "similarity <texts-file> [other-texts-file]",
		Short: "Score pairwise similarity within one set or across two",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := analysis.ReadTexts(args[0])
			if err != nil {
				return err
			}
			req := pulse.SimilarityRequest{Set: a, Flatten: flatten}
			if len(args) == 2 {
				b, err := analysis.ReadTexts(args[1])
				if err != nil {
					return err
				}
				req = pulse.SimilarityRequest{SetA: a, SetB: b, Flatten: flatten}
			}
			req.Fast = fastFlag(cmd, len(a)+len(req.SetB) <= analysis.FastLimit)

			client := newClient()
			defer client.Close()

			resp, err := client.CompareSimilarity(cmd.Context(), req)
			if err != nil {
				return err
			}
			if flatten {
				return writeOutput(cmd.OutOrStdout(), resp.Flattened)
			}
			matrix, err := resp.Similarity()
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), matrix)
		},
	}

	cmd.Flags().BoolVar(&flatten, "flatten", false, "Print the flattened scores")
	return cmd
}

func newExtractCmd() *cobra.Command {
	var themes []string
	var version string

	cmd := &cobra.Command{
		Use:   "extract <texts-file>",
		Short: "Extract the elements of each text that express each theme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(themes) == 0 {
				return fmt.Errorf("--themes is required")
			}
			texts, err := analysis.ReadTexts(args[0])
			if err != nil {
				return err
			}
			client := newClient()
			defer client.Close()

			w := analysis.NewWorkflow().ThemeExtraction(analysis.ExtractionOptions{
				Themes:  themes,
				Version: version,
			})
			results, err := w.Run(cmd.Context(), texts, analysisOptions(cmd, client, len(texts))...)
			if err != nil {
				return err
			}
			res, err := analysis.ResultAs[*analysis.ThemeExtractionResult](results, string(analysis.KindThemeExtraction))
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), res.Rows())
		},
	}

	cmd.Flags().StringSliceVar(&themes, "themes", nil, "Themes to extract (comma separated)")
	cmd.Flags().StringVar(&version, "version", "", "Extraction model version")
	return cmd
}

func newEmbeddingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "embeddings <texts-file>",
		Short: "Compute a dense vector for each text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			texts, err := analysis.ReadTexts(args[0])
			if err != nil {
				return err
			}
			client := newClient()
			defer client.Close()

			resp, err := client.CreateEmbeddings(cmd.Context(), pulse.EmbeddingsRequest{
				Inputs: texts,
				Fast:   fastFlag(cmd, len(texts) <= analysis.FastLimit),
			})
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), resp.Embeddings)
		},
	}
}
