package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/drafter/pkg/export"
	"github.com/ravi-parthasarathy/drafter/pkg/pipeline"
)

// ─── lint ─────────────────────────────────────────────────────────────────────

func lintCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Check the solution for dangling references and incompatible connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			if lintErr := pipeline.ValidateErr(s); lintErr != nil {
				return lintErr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: solution %q is valid (%d assets, %d stages, %d edges)\n",
				a.cfg.Solution, len(s.Assets), len(s.Stages), len(s.Edges))
			return nil
		},
	}
}

// ─── history ──────────────────────────────────────────────────────────────────

func historyCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the actions applied to the solution, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			for _, h := range s.Recent(limit) {
				fmt.Fprintln(cmd.OutOrStdout(), h.String())
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most this many entries (0: all)")
	return cmd
}

// ─── clear / import / dump ────────────────────────────────────────────────────

func clearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Reset the solution to an empty design",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.dispatch(cmd.Context(), pipeline.ClearState{}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared solution %q\n", a.cfg.Solution)
			return nil
		},
	}
}

func importCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <solution.json>",
		Short: "Replace the solution with a document read from a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.update(cmd.Context(), func(st *pipeline.Store) error {
				return st.LoadCheckpoint(args[0])
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d assets, %d stages, %d edges into %q\n",
				len(s.Assets), len(s.Stages), len(s.Edges), a.cfg.Solution)
			for _, le := range pipeline.Validate(s) {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", le)
			}
			return nil
		},
	}
}

func dumpCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write the solution document to stdout or a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			if output != "" && output != "-" {
				return pipeline.NewStore(a.reducer(), pipeline.WithState(s)).SaveCheckpoint(output)
			}
			data, err := pipeline.Serialize(s)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default: stdout)")
	return cmd
}

// ─── export ───────────────────────────────────────────────────────────────────

func exportCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write docker-compose.yml and config.yml for the design as a zip archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			for _, le := range pipeline.Validate(s) {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", le)
			}
			b := export.Build(s, a.cfg.Export)

			if output == "-" {
				return b.WriteZip(cmd.OutOrStdout())
			}
			var buf bytes.Buffer
			if err := b.WriteZip(&buf); err != nil {
				return err
			}
			if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d services, %d links)\n",
				output, len(b.Compose.Services), len(b.Config.Links))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "solution.zip", "archive to write; - for stdout")
	return cmd
}

// ─── schema ───────────────────────────────────────────────────────────────────

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "schema [document|compose|config]",
		Short:     "Print the JSON Schema of the solution document or of an exported descriptor",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"document", "compose", "config"},
		RunE: func(cmd *cobra.Command, args []string) error {
			which := "document"
			if len(args) == 1 {
				which = args[0]
			}
			var raw []byte
			switch which {
			case "document":
				raw = pipeline.DocumentSchema()
			default:
				schemas, err := export.DescriptorSchema()
				if err != nil {
					return err
				}
				file := export.ComposeFile
				if which == "config" {
					file = export.ConfigFile
				}
				raw = schemas[file]
			}
			var out bytes.Buffer
			if err := json.Indent(&out, raw, "", "  "); err != nil {
				return fmt.Errorf("format schema: %w", err)
			}
			out.WriteByte('\n')
			_, err := cmd.OutOrStdout().Write(out.Bytes())
			return err
		},
	}
}

// ─── diff / solutions ─────────────────────────────────────────────────────────

func diffCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <solution-a> <solution-b>",
		Short: "Show a line diff between two stored solutions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			left, err := a.loadNamed(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			right, err := a.loadNamed(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			d, err := pipeline.Diff(left, right)
			if err != nil {
				return err
			}
			if d == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "no differences")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), d)
			return nil
		},
	}
}

func solutionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "solutions",
		Short: "List the solutions in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := a.backend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()
			names, err := b.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, n := range names {
				marker := " "
				if n == a.cfg.Solution {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, n)
			}
			if !slices.Contains(names, a.cfg.Solution) {
				fmt.Fprintf(cmd.OutOrStdout(), "* %s (not saved yet)\n", a.cfg.Solution)
			}
			return nil
		},
	}
}
