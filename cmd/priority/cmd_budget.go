package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Priority/internal/ahp"
	"github.com/MikeSquared-Agency/Priority/internal/analysis"
	"github.com/MikeSquared-Agency/Priority/internal/study"
)

type budgetOptions struct {
	studyPath string
	format    string
	budget    float64
	mode      string
	strategy  string
	mandatory []string
	excluded  []string
}

func newBudgetCommand(global *globalOptions) *cobra.Command {
	opts := &budgetOptions{}
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Allocate a budget across a study's alternatives",
		Long: `Rank a study and fund alternatives by utility within a budget.

Alternatives need a cost. The budget, mandatory and excluded lists default
to the study's budget section when the flags are not given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBudget(cmd, global, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.studyPath, "study", "s", "", "Path to the study file (YAML or JSON)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "table", "Output format: table or json")
	cmd.Flags().Float64Var(&opts.budget, "budget", 0, "Budget to allocate")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "Selection mode: binary or continuous")
	cmd.Flags().StringVar(&opts.strategy, "strategy", "", "Binary strategy: greedy or exact")
	cmd.Flags().StringSliceVar(&opts.mandatory, "mandatory", nil, "Alternatives that must be funded")
	cmd.Flags().StringSliceVar(&opts.excluded, "excluded", nil, "Alternatives that are never funded")
	_ = cmd.MarkFlagRequired("study")

	return cmd
}

func runBudget(cmd *cobra.Command, global *globalOptions, opts *budgetOptions) error {
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

	req := analysis.BudgetRequest{
		Budget:    opts.budget,
		Mandatory: opts.mandatory,
		Excluded:  opts.excluded,
		Mode:      ahp.BudgetMode(opts.mode),
		Strategy:  ahp.BudgetStrategy(opts.strategy),
	}
	if s.Budget != nil {
		if !cmd.Flags().Changed("budget") {
			req.Budget = s.Budget.Amount
		}
		if !cmd.Flags().Changed("mandatory") {
			req.Mandatory = s.Budget.Mandatory
		}
		if !cmd.Flags().Changed("excluded") {
			req.Excluded = s.Budget.Excluded
		}
	}
	if req.Budget <= 0 {
		return errors.New("a positive --budget is required")
	}

	engine := analysis.Options{
		ConsistencyThreshold: cfg.Engine.ConsistencyThreshold,
		Parallelism:          cfg.Engine.Parallelism,
	}
	res, snap, err := s.Run(cmd.Context(), engine)
	if err != nil {
		return err
	}
	defaults := ahp.BudgetOptions{
		Mode:           ahp.BudgetMode(cfg.Engine.BudgetMode),
		Strategy:       ahp.BudgetStrategy(cfg.Engine.BudgetStrategy),
		ExactItemLimit: cfg.Engine.ExactItemLimit,
	}
	out, err := analysis.Budget(res, snap, req, defaults)
	if err != nil {
		return err
	}

	if opts.format == "json" {
		return writeJSON(cmd.OutOrStdout(), out)
	}
	printAllocation(cmd.OutOrStdout(), req.Budget, out)
	return nil
}

func printAllocation(w io.Writer, budget float64, res *ahp.OptimizationResult) {
	fmt.Fprintf(w, "Budget: %.2f (%s, %s)\n", budget, res.Mode, res.Strategy)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  ALTERNATIVE\tCOST\tUTILITY\tFRACTION\tMANDATORY")
	for _, a := range res.Allocations {
		fmt.Fprintf(tw, "  %s\t%.2f\t%.4f\t%.2f\t%t\n", a.AlternativeID, a.AllocatedCost, a.UtilityContribution, a.Fraction, a.Mandatory)
	}
	tw.Flush()
	fmt.Fprintf(w, "Total cost: %.2f  Total utility: %.4f  Utilization: %.1f%%\n",
		res.TotalCost, res.TotalUtility, res.BudgetUtilization*100)
	if len(res.InfeasibleMandatory) > 0 {
		fmt.Fprintf(w, "Infeasible mandatory: %v\n", res.InfeasibleMandatory)
	}
}
