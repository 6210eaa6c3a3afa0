package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/loykin/appwatch"
)

// createCheckCommand creates the check subcommand
func createCheckCommand(c *command, f *CheckFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check every enabled storefront once and notify on change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer c.close()
			return c.check(cmd, *f)
		},
	}
	cmd.Flags().BoolVar(&f.JSON, "json", false, "print the run report as JSON")
	return cmd
}

// createHistoryCommand creates the history subcommand
func createHistoryCommand(c *command, f *HistoryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the stored version history of one platform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer c.close()
			return c.history(cmd, *f)
		},
	}
	cmd.Flags().StringVar(&f.Platform, "platform", "", "platform to show (ios or android)")
	cmd.Flags().StringVar(&f.Format, "format", "json", "output format (json or yaml)")
	_ = cmd.MarkFlagRequired("platform")
	return cmd
}

func (c *command) check(cmd *cobra.Command, f CheckFlags) error {
	w, err := appwatch.New(c.cfg, c.log)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	rep, err := w.Check(cmd.Context())
	out := cmd.OutOrStdout()
	if f.JSON {
		printJSON(out, rep)
	} else {
		printReport(out, rep)
	}
	return err
}

func (c *command) history(cmd *cobra.Command, f HistoryFlags) error {
	p, err := appwatch.ParsePlatform(f.Platform)
	if err != nil {
		return err
	}
	format := strings.ToLower(f.Format)
	if format != "json" && format != "yaml" {
		return fmt.Errorf("unknown format %q (want json or yaml)", f.Format)
	}

	w, err := appwatch.New(c.cfg, c.log)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	doc := w.Document(cmd.Context(), p)
	if format == "yaml" {
		return printYAML(cmd.OutOrStdout(), doc)
	}
	printJSON(cmd.OutOrStdout(), doc)
	return nil
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
