package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/eduardo5010/study-cycle/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"
)

// regoQuery is evaluated against the loaded modules. The policy sets
// data.selection.variant_id to the chosen ID; an undefined result means no
// choice.
const regoQuery = "data.selection"

// regoPrintHook forwards Rego print() statements to the logger
type regoPrintHook struct {
	ctx context.Context
}

func (h *regoPrintHook) Print(_ print.Context, message string) error {
	logging.From(h.ctx).Debug("rego print", "message", message)
	return nil
}

// Rego evaluates selection rules written in Rego
type Rego struct {
	query *rego.PreparedEvalQuery
}

// NewRego loads every .rego file in policyDir
func NewRego(ctx context.Context, policyDir string) (*Rego, error) {
	if policyDir == "" {
		return nil, goerr.New("policy directory is required for rego policy")
	}

	files, err := filepath.Glob(filepath.Join(policyDir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files", goerr.V("dir", policyDir))
	}
	if len(files) == 0 {
		return nil, goerr.New("no rego files found", goerr.V("dir", policyDir))
	}

	modules := make(map[string]string, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.Value("path", file))
		}
		modules[file] = string(data)
	}

	return NewRegoFromModules(ctx, modules)
}

// NewRegoFromModules prepares the selection query from in-memory modules
// keyed by file name
func NewRegoFromModules(ctx context.Context, modules map[string]string) (*Rego, error) {
	options := make([]func(*rego.Rego), 0, len(modules)+2)
	options = append(options, rego.Query(regoQuery), rego.EnablePrintStatements(true))
	for name, src := range modules {
		options = append(options, rego.Module(name, src))
	}

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare query", goerr.Value("query", regoQuery))
	}

	return &Rego{query: &prepared}, nil
}

type regoVariant struct {
	ID         string   `json:"id"`
	Origin     string   `json:"origin"`
	Type       string   `json:"type"`
	Difficulty string   `json:"difficulty"`
	Tags       []string `json:"tags"`
	AuthorID   string   `json:"author_id"`
	CreatedAt  int64    `json:"created_at"`
	// LastUsedAt is a unix time, 0 when the learner never saw the variant
	LastUsedAt int64 `json:"last_used_at"`
	Index      int   `json:"index"`
}

type regoInput struct {
	ItemID    string        `json:"item_id"`
	LearnerID string        `json:"learner_id"`
	Now       int64         `json:"now"`
	Variants  []regoVariant `json:"variants"`
}

func (x *Rego) Choose(ctx context.Context, req *Request) (*model.Variant, error) {
	if len(req.Variants) == 0 {
		return nil, nil
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	input := regoInput{
		ItemID:    string(req.ItemID),
		LearnerID: string(req.LearnerID),
		Now:       now.Unix(),
	}
	for i, v := range req.Variants {
		rv := regoVariant{
			ID:         string(v.ID),
			Origin:     string(v.Origin),
			Type:       string(v.Type),
			Difficulty: string(v.Difficulty),
			Tags:       v.Tags,
			AuthorID:   v.AuthorID,
			CreatedAt:  v.CreatedAt.Unix(),
			Index:      i,
		}
		if at, ok := req.Usage[v.ID]; ok {
			rv.LastUsedAt = at.Unix()
		}
		input.Variants = append(input.Variants, rv)
	}

	rs, err := x.query.Eval(ctx, rego.EvalInput(input), rego.EvalPrintHook(&regoPrintHook{ctx: ctx}))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to evaluate selection policy", goerr.V("item_id", req.ItemID))
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, nil
	}

	data, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return nil, nil
	}
	raw, ok := data["variant_id"]
	if !ok {
		return nil, nil
	}
	chosen := fmt.Sprint(raw)

	for _, v := range req.Variants {
		if string(v.ID) == chosen {
			return v, nil
		}
	}
	return nil, goerr.New("selection policy chose unknown variant",
		goerr.V("item_id", req.ItemID),
		goerr.V("variant_id", chosen))
}
