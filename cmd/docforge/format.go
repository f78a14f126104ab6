package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docforge/internal/app"
	"github.com/dgallion1/docforge/internal/doctree"
	"github.com/dgallion1/docforge/internal/generate"
	"github.com/dgallion1/docforge/internal/pipeline"
)

// defaultOutput places <base><suffix>.docx next to the input.
func defaultOutput(in, suffix string) string {
	base := strings.TrimSuffix(in, filepath.Ext(in))
	return base + suffix + ".docx"
}

func readDocx(path string) ([]byte, error) {
	if !strings.EqualFold(filepath.Ext(path), ".docx") {
		return nil, fmt.Errorf("%s: only .docx input is supported", path)
	}
	return os.ReadFile(path)
}

func (c *cli) formatCmd() *cobra.Command {
	var (
		out  string
		noAI bool
	)
	cmd := &cobra.Command{
		Use:   "format <in.docx>",
		Short: "Polish a document's text and restyle it in place of the original layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readDocx(args[0])
			if err != nil {
				return err
			}
			if out == "" {
				out = defaultOutput(args[0], "_formatted")
			}

			var svc *pipeline.Service
			if noAI {
				svc = pipeline.NewService(nil, nil, doctree.NewRegistry(nil, c.log), c.log)
			} else {
				if err := requireLLM(c.cfg); err != nil {
					return err
				}
				a, err := app.New(cmd.Context(), c.cfg, nil, c.log)
				if err != nil {
					return err
				}
				defer a.Close()
				svc = a.Service
			}

			stages := 3
			if noAI {
				stages = 2
			}
			p := newProgress(cmd.ErrOrStderr(), stages, "formatting")
			sum, err := svc.Format(cmd.Context(), pipeline.FormatRequest{Data: data, UseAI: !noAI}, out, p)
			p.Finish()
			if err != nil {
				return err
			}

			if sum.PolishFailed {
				warnf(cmd, "polishing failed, original text kept")
			}
			okf(cmd, "wrote %s (%d paragraphs, %d images kept)", out, sum.Blocks, sum.Images)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output path (default <in>_formatted.docx)")
	cmd.Flags().BoolVar(&noAI, "no-ai", false, "restyle only, without polishing the text")
	return cmd
}

func (c *cli) generateCmd() *cobra.Command {
	var (
		out, templateID, outline, outlineFile, tone, mode string
	)
	cmd := &cobra.Command{
		Use:   "generate <in.docx>",
		Short: "Write a new document in a template's structure from a source document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if templateID == "" {
				return fmt.Errorf("--template is required")
			}
			if err := requireLLM(c.cfg); err != nil {
				return err
			}
			data, err := readDocx(args[0])
			if err != nil {
				return err
			}
			if outlineFile != "" {
				b, err := os.ReadFile(outlineFile)
				if err != nil {
					return fmt.Errorf("read outline: %w", err)
				}
				outline = string(b)
			}
			if mode == "" {
				mode = c.cfg.GenerationMode
			}
			if out == "" {
				out = defaultOutput(args[0], "_"+templateID)
			}

			a, err := app.New(cmd.Context(), c.cfg, nil, c.log)
			if err != nil {
				return err
			}
			defer a.Close()

			p := newProgress(cmd.ErrOrStderr(), 4, "generating")
			sum, err := a.Service.Generate(cmd.Context(), pipeline.GenerateRequest{
				Data:       data,
				Filename:   filepath.Base(args[0]),
				TemplateID: templateID,
				Outline:    outline,
				Tone:       tone,
				Mode:       generate.ParseMode(mode),
			}, out, p)
			p.Finish()
			if err != nil {
				return err
			}

			if sum.Images > sum.Placed {
				warnf(cmd, "%d of %d images had no generated section and were appended at the end", sum.Images-sum.Placed, sum.Images)
			}
			okf(cmd, "wrote %s (%d sections, %d images)", out, sum.Sections, sum.Images)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output path (default <in>_<template>.docx)")
	cmd.Flags().StringVarP(&templateID, "template", "t", "", "template id (see `docforge templates list`)")
	cmd.Flags().StringVar(&outline, "outline", "", "outline text; defaults to the template's section titles")
	cmd.Flags().StringVar(&outlineFile, "outline-file", "", "read the outline from a file")
	cmd.Flags().StringVar(&tone, "tone", "", "writing tone, e.g. 正式")
	cmd.Flags().StringVar(&mode, "mode", "", "sequential, batch or parallel (default from GENERATION_MODE)")
	cmd.MarkFlagsMutuallyExclusive("outline", "outline-file")
	return cmd
}
