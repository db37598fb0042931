package main

import (
	"fmt"

	"github.com/sourceplane/hostcheck/internal/loader"
	"github.com/sourceplane/hostcheck/internal/render"
	"github.com/spf13/cobra"
)

var (
	outputFile   string
	outputFormat string
	viewPlan     bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compile a job into its execution plan without running it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return generatePlan(cmd)
	},
}

func registerPlanCommand(root *cobra.Command) {
	root.AddCommand(planCmd)

	planCmd.Flags().StringVarP(&dslFile, "file", "f", "job.yaml", "Job file path (JSON or YAML)")
	planCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the plan to this file (format from extension)")
	planCmd.Flags().StringVar(&outputFormat, "format", "json", "Output format when printing (json/yaml)")
	planCmd.Flags().BoolVarP(&viewPlan, "view", "v", false, "Print the plan as a tree")
}

func generatePlan(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	payload, err := loader.ReadDocument(dslFile)
	if err != nil {
		return err
	}
	planner, err := newPlanner()
	if err != nil {
		return err
	}
	dsl, plan, err := planner.Plan(payload)
	if err != nil {
		return err
	}

	renderer := render.NewRenderer()
	doc := renderer.Document(dsl, plan)

	if viewPlan {
		fmt.Fprint(out, render.NewPlanViewer(doc).ViewTree())
		return nil
	}

	if outputFile != "" {
		if err := renderer.WritePlan(doc, outputFile); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Plan written to %s\n", outputFile)
		return nil
	}

	data, err := renderer.Render(doc, outputFormat)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(data))
	return nil
}
