package main

import (
	"fmt"

	"github.com/sourceplane/hostcheck/internal/loader"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a job against the schema, policy and audit rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateJob(cmd)
	},
}

func registerValidateCommand(root *cobra.Command) {
	root.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&dslFile, "file", "f", "job.yaml", "Job file path (JSON or YAML)")
}

func validateJob(cmd *cobra.Command) error {
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
		fmt.Fprintf(out, "✗ %s rejected\n", dslFile)
		return err
	}

	fmt.Fprintf(out, "✓ %s is valid: job %s, %d steps on %s\n", dslFile, dsl.JobID, len(plan.Steps), dsl.Target.Host)
	return nil
}
