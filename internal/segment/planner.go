package segment

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	cfgpkg "github.com/local/bookpipe/internal/config"
	"github.com/local/bookpipe/internal/dispatcher"
	"github.com/local/bookpipe/internal/evidence"
	"github.com/local/bookpipe/internal/outline"
	"github.com/local/bookpipe/internal/pdftool"
	"github.com/local/bookpipe/internal/plan"
)

// planClient is the slice of the inference client the planner needs.
type planClient interface {
	GetResponse(ctx context.Context, prompt string, task dispatcher.TaskType, preferredModel string) (string, error)
}

// PlanOutcome is the planner's terminal result for one document. Skipped
// means the model legitimately declined to plan (insufficient evidence);
// the attempt is still logged SUCCESS.
type PlanOutcome struct {
	Components []plan.Component
	TotalPages int
	Skipped    bool
	Message    string
}

// Planner re-extracts metadata fresh and obtains a segmentation plan from the
// inference client.
type Planner struct {
	tools  *pdftool.Tools
	client planClient
	cfg    cfgpkg.GeminiConfig

	// readEmbedded is the primary outline source; overridable in tests.
	readEmbedded func(path string) []evidence.OutlineEntry
}

func NewPlanner(tools *pdftool.Tools, client planClient, cfg cfgpkg.GeminiConfig) *Planner {
	return &Planner{
		tools:        tools,
		client:       client,
		cfg:          cfg,
		readEmbedded: outline.ReadEmbedded,
	}
}

// Plan runs the password sub-protocol, re-extracts both outline sources and
// the page count, and asks the client for a plan. A malformed response gets
// one retry with the strongest model; an empty plan gets one retry and is
// then accepted as a deliberate skip. Errors mean a FAILURE-grade outcome.
func (p *Planner) Plan(ctx context.Context, path string) (*PlanOutcome, error) {
	if removed := p.tools.EnsureDecrypted(ctx, path); removed {
		log.Info().Str("file", path).Msg("password removed before planning")
	}

	embedded := p.readEmbedded(path)

	var secondary []evidence.OutlineEntry
	if dump, err := p.tools.DumpData(ctx, path); err == nil {
		secondary = outline.ParseDumpData(dump)
	} else {
		log.Warn().Err(err).Str("file", path).Msg("secondary metadata dump failed for planning")
	}

	// Authoritative outline: embedded first, secondary as stand-in.
	authoritative := embedded
	if len(authoritative) == 0 {
		authoritative = secondary
	}
	if len(authoritative) == 0 {
		return nil, errors.New("no usable metadata from any extractor")
	}

	totalPages, err := p.tools.PageCount(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("no page count from any source: %w", err)
	}

	prompt, err := BuildPrompt(path, authoritative, secondary, totalPages)
	if err != nil {
		return nil, err
	}

	components, err := p.requestPlan(ctx, prompt, totalPages, "")
	if err != nil {
		var malformed *plan.MalformedPlanError
		if !errors.As(err, &malformed) {
			return nil, err
		}
		log.Warn().Err(err).Str("file", path).Msg("plan parse failed - retrying with strongest model")
		components, err = p.requestPlan(ctx, prompt, totalPages, p.strongestModel())
		if err != nil {
			return nil, err
		}
	}

	if len(components) == 0 {
		log.Info().Str("file", path).Msg("empty plan - retrying with strongest model")
		components, err = p.requestPlan(ctx, prompt, totalPages, p.strongestModel())
		if err != nil {
			return nil, err
		}
		if len(components) == 0 {
			return &PlanOutcome{TotalPages: totalPages, Skipped: true, Message: "LLM skipped due to insufficient metadata."}, nil
		}
	}

	if err := plan.Validate(components, totalPages); err != nil {
		return nil, fmt.Errorf("plan failed validation: %w", err)
	}
	if comp := plan.CheckCompleteness(components, totalPages); !comp.Complete {
		log.Warn().
			Str("file", path).
			Strs("gaps", comp.Gaps).
			Strs("overlaps", comp.Overlaps).
			Msg("plan does not fully partition the document - executing anyway")
	}

	return &PlanOutcome{Components: components, TotalPages: totalPages}, nil
}

func (p *Planner) requestPlan(ctx context.Context, prompt string, totalPages int, preferredModel string) ([]plan.Component, error) {
	raw, err := p.client.GetResponse(ctx, prompt, dispatcher.TaskSegmentation, preferredModel)
	if err != nil {
		return nil, fmt.Errorf("inference request failed: %w", err)
	}
	return plan.Parse(raw, totalPages)
}

func (p *Planner) strongestModel() string {
	if len(p.cfg.SegmentModels) > 0 {
		return p.cfg.SegmentModels[0]
	}
	return ""
}
