package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Priority/internal/ahp"
	"github.com/MikeSquared-Agency/Priority/internal/analysis"
	"github.com/MikeSquared-Agency/Priority/internal/study"
)

type computeOptions struct {
	studyPath   string
	format      string
	sensitivity []string
}

func newComputeCommand(global *globalOptions) *cobra.Command {
	opts := &computeOptions{}
	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute priorities for a study file",
		Long: `Compute weights, consistency and the group ranking of a study.

The study file lists the criteria tree, the alternatives and every
evaluator's pairwise comparisons. Use --sensitivity leaf=value to re-rank
with one leaf criterion's global weight forced to value.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompute(cmd, global, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.studyPath, "study", "s", "", "Path to the study file (YAML or JSON)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "table", "Output format: table or json")
	cmd.Flags().StringSliceVar(&opts.sensitivity, "sensitivity", nil, "Leaf weight override as leaf=value (repeatable)")
	_ = cmd.MarkFlagRequired("study")

	return cmd
}

type computeReport struct {
	Results     *analysis.Results             `json:"results"`
	Sensitivity []*analysis.SensitivityReport `json:"sensitivity,omitempty"`
}

func runCompute(cmd *cobra.Command, global *globalOptions, opts *computeOptions) error {
	if err := checkFormat(opts.format); err != nil {
		return err
	}
	cfg, err := global.load()
	if err != nil {
		return err
	}
	s, err := study.Load(opts.studyPath)
	if err != nil {
		return err
	}
	engine := analysis.Options{
		ConsistencyThreshold: cfg.Engine.ConsistencyThreshold,
		Parallelism:          cfg.Engine.Parallelism,
	}
	res, _, err := s.Run(cmd.Context(), engine)
	if err != nil {
		return err
	}

	report := computeReport{Results: res}
	for _, raw := range opts.sensitivity {
		leaf, value, err := parseOverride(raw)
		if err != nil {
			return err
		}
		rep, err := analysis.Sensitivity(res, analysis.SensitivityRequest{Target: leaf, Value: &value}, cfg.Engine)
		if err != nil {
			return fmt.Errorf("sensitivity %s: %w", raw, err)
		}
		report.Sensitivity = append(report.Sensitivity, rep)
	}

	out := cmd.OutOrStdout()
	if opts.format == "json" {
		return writeJSON(out, report)
	}
	printResultsTable(out, s.Name, res)
	for _, rep := range report.Sensitivity {
		fmt.Fprintf(out, "\nSensitivity: %s = %.3f\n", rep.Point.Target, rep.Point.Value)
		printRanking(out, rep.Point.Ranking)
	}
	return nil
}

func parseOverride(raw string) (string, float64, error) {
	leaf, value, ok := strings.Cut(raw, "=")
	if !ok || leaf == "" {
		return "", 0, fmt.Errorf("invalid --sensitivity %q: expected leaf=value", raw)
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid --sensitivity %q: %w", raw, err)
	}
	return leaf, v, nil
}

func checkFormat(format string) error {
	if format != "table" && format != "json" {
		return fmt.Errorf("unsupported format %q: must be table or json", format)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResultsTable(w io.Writer, name string, res *analysis.Results) {
	fmt.Fprintf(w, "Study: %s\n", name)
	fmt.Fprintf(w, "Evaluators: %d", len(res.Evaluators))
	if len(res.Inconsistent) > 0 {
		fmt.Fprintf(w, " (inconsistent: %s)", strings.Join(res.Inconsistent, ", "))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "\nCriteria weights (group):")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	leaves := make([]string, 0, len(res.Group.Synthesis.LeafWeights))
	for leaf := range res.Group.Synthesis.LeafWeights {
		leaves = append(leaves, leaf)
	}
	sort.Strings(leaves)
	for _, leaf := range leaves {
		fmt.Fprintf(tw, "  %s\t%.4f\n", leaf, res.Group.Synthesis.LeafWeights[leaf])
	}
	tw.Flush()

	fmt.Fprintln(w, "\nConsistency:")
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  EVALUATOR\tCONTEXT\tN\tCR\tOK")
	for _, ev := range res.Evaluators {
		for _, c := range ev.Contexts {
			if c.Consistency.N < 3 {
				continue
			}
			fmt.Fprintf(tw, "  %s\t%s\t%d\t%.4f\t%t\n", ev.EvaluatorID, c.Node, c.Consistency.N, c.Consistency.CR, c.Consistency.Acceptable)
		}
	}
	tw.Flush()

	fmt.Fprintln(w, "\nRanking:")
	printRanking(w, res.Ranking)
}

func printRanking(w io.Writer, ranking []ahp.RankedAlternative) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  RANK\tALTERNATIVE\tSCORE")
	for _, r := range ranking {
		fmt.Fprintf(tw, "  %d\t%s\t%.4f\n", r.Rank, r.AlternativeID, r.Score)
	}
	tw.Flush()
}
