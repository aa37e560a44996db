package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yungbote/negotiator-backend/internal/assessment/lexicon"
	"github.com/yungbote/negotiator-backend/internal/assessment/scoring"
	"github.com/yungbote/negotiator-backend/internal/assessment/transcript"
	"github.com/yungbote/negotiator-backend/internal/domain/assessment"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
	"github.com/yungbote/negotiator-backend/internal/services"
)

var (
	scoreLexicon string
	scoreJSON    bool
)

var scoreCmd = &cobra.Command{
	Use:   "score <file|->",
	Short: "Score a transcript with the rule-based scorer",
	Long: `Score a transcript without touching storage or the external model.

The input is either a plain "Speaker: text" transcript or a JSON submission
with "turns". Use - to read from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sub, err := readSubmission(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}
		lex, err := lexiconFrom(scoreLexicon)
		if err != nil {
			return fmt.Errorf("loading lexicon: %w", err)
		}
		orch := services.NewOrchestrator(services.OrchestratorDeps{
			Log:    logger.Nop(),
			Parser: transcript.Parser{},
			Scorer: scoring.New(lex),
		})
		out := orch.Score(cmd.Context(), sub)

		if scoreJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out.Details)
		}
		printOutcome(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreLexicon, "lexicon", "", "path to a lexicon YAML (defaults to the embedded lexicon)")
	scoreCmd.Flags().BoolVar(&scoreJSON, "json", false, "print the full assessment details as JSON")
}

func lexiconFrom(path string) (*lexicon.Lexicon, error) {
	if path == "" {
		return lexicon.Default()
	}
	return lexicon.Load(path)
}

func readSubmission(path string, stdin io.Reader) (assessment.Submission, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return assessment.Submission{}, fmt.Errorf("reading transcript: %w", err)
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.EqualFold(filepath.Ext(path), ".json") || strings.HasPrefix(trimmed, "{") {
		var sub assessment.Submission
		if err := json.Unmarshal(raw, &sub); err != nil {
			return sub, fmt.Errorf("decoding submission: %w", err)
		}
		return sub, nil
	}
	return assessment.Submission{Transcript: trimmed}, nil
}

func printOutcome(w io.Writer, out services.Outcome) {
	if out.RuleBased.InsufficientData {
		fmt.Fprintf(w, "%s (%d utterances)\n", out.RuleBased.Note, len(out.Utterances))
	}
	fmt.Fprintf(w, "%-26s %6s %s\n", "DIMENSION", "SCORE", "TECHNIQUES")
	for _, d := range out.Reconciled.Dimensions {
		techniques := out.RuleBased.Get(d.Dimension).UniqueTechniques()
		fmt.Fprintf(w, "%-26s %6d %s\n", d.Dimension, d.Final, strings.Join(techniques, ", "))
	}
	fmt.Fprintf(w, "%-26s %6d\n", "overall", out.Reconciled.Overall)
	if len(out.Feedback.Strengths) > 0 {
		fmt.Fprintf(w, "\nStrengths:\n")
		for _, s := range out.Feedback.Strengths {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
	if len(out.Feedback.Improvements) > 0 {
		fmt.Fprintf(w, "\nImprovement areas:\n")
		for _, s := range out.Feedback.Improvements {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
}
