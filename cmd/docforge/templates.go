package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dgallion1/docforge/internal/doctree"
	"github.com/dgallion1/docforge/internal/pathstore"
)

// registry loads the builtin, TEMPLATE_DIR and remote templates without
// touching the completion backend.
func (c *cli) registry() (*doctree.Registry, func(), error) {
	var (
		remote doctree.RemoteSource
		done   = func() {}
	)
	if c.cfg.PathstoreURL != "" {
		ps := pathstore.NewClient(c.cfg.PathstoreURL, c.cfg.PathstoreAPIKey)
		remote, done = ps, ps.Close
	}
	reg := doctree.NewRegistry(remote, c.log)
	if c.cfg.TemplateDir != "" {
		if err := reg.AddDir(c.cfg.TemplateDir); err != nil {
			done()
			return nil, nil, err
		}
	}
	return reg, done, nil
}

func (c *cli) templatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List and check document templates",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List available templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, done, err := c.registry()
			if err != nil {
				return err
			}
			defer done()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tSECTIONS")
			for _, t := range reg.List(cmd.Context()) {
				s := t.Summary()
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", s.ID, s.Name, s.Category, s.Sections)
			}
			return tw.Flush()
		},
	}

	var showOutline bool
	validate := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a YAML or JSON template file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := doctree.LoadFile(args[0])
			if err != nil {
				return err
			}
			rep := doctree.Validate(t)
			w := cmd.OutOrStdout()
			red := color.New(color.FgRed)
			for _, e := range rep.Errors {
				red.Fprintf(w, "error: %s\n", e)
			}
			for _, wn := range rep.Warnings {
				warnf(cmd, "%s", wn)
			}
			if !rep.OK() {
				return fmt.Errorf("template %q has %d errors", t.ID, len(rep.Errors))
			}
			okf(cmd, "template %s (%s) is valid, %d sections", t.ID, t.Name, len(t.Flatten()))
			if showOutline {
				fmt.Fprint(w, t.Outline())
			}
			return nil
		},
	}
	validate.Flags().BoolVar(&showOutline, "outline", false, "print the section outline")

	cmd.AddCommand(list, validate)
	return cmd
}
