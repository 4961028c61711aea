package main

import (
	"github.com/spf13/cobra"

	"github.com/local/bookpipe/internal/ai"
	"github.com/local/bookpipe/internal/dispatcher"
	"github.com/local/bookpipe/internal/orchestrator"
	"github.com/local/bookpipe/internal/pdftool"
	"github.com/local/bookpipe/internal/web"
)

var classifyForce bool

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify the structural complexity of every book in the corpus",
	Long: `Walk the books directory, collect structural evidence for each PDF
(escalating from metadata to layout analysis only when needed), obtain a
complexity classification from the inference service, and append one record
per book to the results file.

Books already present in the results file are skipped unless --force is set,
which also truncates the prior results.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		orch, ops := buildPipeline()
		ops.Start()
		defer ops.Shutdown()
		return orch.RunClassify(cmd.Context(), classifyForce)
	},
}

var segmentForce bool

var segmentCmd = &cobra.Command{
	Use:   "segment",
	Short: "Split classified books into their component documents",
	Long: `Read the classification results, and for every book whose evidence
came from the metadata check, request a segmentation plan from the inference
service and execute it with the external split tool (with an in-process
fallback). Outcomes are appended to the segmentation log; skipped books are
listed with reasons in the skip log.

Books with a prior SUCCESS entry in the segmentation log are skipped unless
--force is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		orch, ops := buildPipeline()
		ops.Start()
		defer ops.Shutdown()
		return orch.RunSegment(cmd.Context(), segmentForce)
	},
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyForce, "force", false, "reprocess all files, truncating prior results")
	segmentCmd.Flags().BoolVar(&segmentForce, "force", false, "reprocess all files, ignoring prior successes")
}

// buildPipeline wires the production dependency graph from config.
func buildPipeline() (*orchestrator.Orchestrator, *web.Server) {
	run := pdftool.ExecRunner{}
	tools := pdftool.NewTools(run, cfg.Tools)
	client := dispatcher.New(
		cfg.Gemini,
		ai.NewGeminiClient(),
		ai.NewOllamaClient(cfg.Ollama.URL, cfg.Ollama.Model),
		cfg.Ollama.Timeout,
	)
	return orchestrator.New(cfg, tools, run, client), web.New(cfg.Metrics.Addr)
}
