package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/local/bookpipe/internal/layout"
	"github.com/local/bookpipe/internal/orchestrator"
	"github.com/local/bookpipe/internal/outline"
	"github.com/local/bookpipe/internal/pdftool"
	"github.com/local/bookpipe/internal/source"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Single-document evidence tools",
	Long: `Inspect one document without touching the corpus logs. PATH may be a
local path, a file:// or http(s):// URL, or an s3://bucket/key reference;
remote documents are downloaded to a temp file first.`,
}

var inspectMetadataCmd = &cobra.Command{
	Use:   "metadata PATH",
	Short: "Print the document's evidence record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		local, cleanup, err := source.Resolve(ctx, args[0])
		if err != nil {
			return err
		}
		defer cleanup()

		tools := pdftool.NewTools(pdftool.ExecRunner{}, cfg.Tools)
		rec := orchestrator.CollectEvidence(ctx, local, orchestrator.Extractors{
			EnsureDecrypted: tools.EnsureDecrypted,
			ReadEmbedded:    outline.ReadEmbedded,
			DumpData:        tools.DumpData,
			AnalyzeLayout:   layout.Analyze,
		}, cfg.Layout.MaxPages)
		return printJSON(rec)
	},
}

var inspectLayoutCmd = &cobra.Command{
	Use:   "layout PATH",
	Short: "Print the document's layout heuristics as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		local, cleanup, err := source.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer cleanup()

		res, err := layout.Analyze(local, cfg.Layout.MaxPages)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{
			"distinct_font_size_count":        res.DistinctFontSizes,
			"top_font_sizes":                  res.TopFontSizes,
			"page_numbering_transition_found": res.TransitionFound,
			"page_number_styles":              res.PageNumberStyles,
			"pages_scanned":                   res.PagesScanned,
		})
	},
}

var inspectPagesCmd = &cobra.Command{
	Use:   "pages PATH",
	Short: "Print the document's page count as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		local, cleanup, err := source.Resolve(ctx, args[0])
		if err != nil {
			return err
		}
		defer cleanup()

		tools := pdftool.NewTools(pdftool.ExecRunner{}, cfg.Tools)
		n, err := tools.PageCount(ctx, local)
		if err != nil {
			return err
		}
		return printJSON(map[string]int{"total_pages": n})
	},
}

func init() {
	inspectCmd.AddCommand(inspectMetadataCmd, inspectLayoutCmd, inspectPagesCmd)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
