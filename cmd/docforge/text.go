package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docforge/internal/app"
	"github.com/dgallion1/docforge/internal/chunker"
	"github.com/dgallion1/docforge/internal/extract"
	"github.com/dgallion1/docforge/internal/office"
	"github.com/dgallion1/docforge/internal/parser"
)

func (c *cli) segmentCmd() *cobra.Command {
	var (
		mode   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "segment <file>",
		Short: "Split a document's text into paragraphs, sentences or semantic units",
		Long:  "Reads any supported file (" + strings.Join(slices.Sorted(maps.Keys(parser.SupportedExtensions)), ", ") + ") and prints its segments.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := parser.ReadFile(args[0])
			if err != nil {
				return err
			}
			segs := chunker.SegmentText(parser.PlainText(tree), chunker.ParseMode(mode))
			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(segs)
			}
			for _, s := range segs {
				fmt.Fprintf(w, "[%d] %s\n", s.Position, s.Text)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "paragraph", "paragraph, sentence or semantic")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func (c *cli) extractCmd() *cobra.Command {
	var (
		template string
		fields   []string
	)
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Pull named fields out of a document's text",
		Long:  "Built-in templates: " + strings.Join(extract.TemplateNames(), ", "),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if template == "" && len(fields) == 0 {
				return fmt.Errorf("--template or --fields is required")
			}
			if err := requireLLM(c.cfg); err != nil {
				return err
			}
			tree, err := parser.ReadFile(args[0])
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), c.cfg, nil, c.log)
			if err != nil {
				return err
			}
			defer a.Close()

			text := parser.PlainText(tree)
			var out map[string]string
			if template != "" {
				out, err = a.Extractor.StructureNamed(cmd.Context(), text, template)
			} else {
				out, err = a.Extractor.Structure(cmd.Context(), text, fields)
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVarP(&template, "template", "t", "", "built-in field set")
	cmd.Flags().StringSliceVarP(&fields, "fields", "f", nil, "comma-separated field names")
	cmd.MarkFlagsMutuallyExclusive("template", "fields")
	return cmd
}

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <in.docx>",
		Short: "Count a document's paragraphs, headings, images, tables and words",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			doc, err := office.Read(f)
			if err != nil {
				return err
			}
			s := doc.Stats()
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "paragraphs: %d\nheadings:   %d\nimages:     %d\ntables:     %d\nwords:      %d\nchars:      %d\n",
				s.Paragraphs, s.Headings, s.Images, s.Tables, s.Words, s.Chars)
			for _, h := range doc.ByHeadings() {
				fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", h.Level-1), h.Heading)
			}
			return nil
		},
	}
}
