package main

import (
	"fmt"

	"github.com/sourceplane/hostcheck/internal/loader"
	"github.com/sourceplane/hostcheck/internal/parse"
	"github.com/sourceplane/hostcheck/internal/render"
	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:     "catalog",
	Aliases: []string{"actions"},
	Short:   "List the actions and profiles jobs may use",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listCatalog(cmd)
	},
}

func registerCatalogCommand(root *cobra.Command) {
	root.AddCommand(catalogCmd)
}

func listCatalog(cmd *cobra.Command) error {
	cat, err := loader.LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	if err := cat.CheckParsers(parse.NewRegistry().Has); err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), render.ViewCatalog(cat))
	return nil
}
