// Package policy decides which variant of a study item a learner sees. A
// policy is the single authority for that choice; returning nil means "no
// choice" and lets the caller fall back to generated content.
package policy

import (
	"context"
	"time"

	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Request is the input of a selection
type Request struct {
	ItemID    model.StudyItemID
	LearnerID model.LearnerID
	// Variants are in insertion order
	Variants []*model.Variant
	// Usage holds last-shown times for the learner; never-shown variants are absent
	Usage map[model.VariantID]time.Time
	Now   time.Time
}

// Policy chooses one variant or none
type Policy interface {
	Choose(ctx context.Context, req *Request) (*model.Variant, error)
}

// Func adapts a function to Policy
type Func func(ctx context.Context, req *Request) (*model.Variant, error)

func (f Func) Choose(ctx context.Context, req *Request) (*model.Variant, error) {
	return f(ctx, req)
}

const (
	NameHumanFirst = "human-first"
	NameRandom     = "random"
	NameLRU        = "lru"
	NameRego       = "rego"
)

// Names lists the policies that can be built by name
var Names = []string{NameHumanFirst, NameRandom, NameLRU, NameRego}

// Config carries the settings a named policy may need
type Config struct {
	Seed      uint64
	PolicyDir string
}

// New builds a policy by name
func New(ctx context.Context, name string, cfg Config) (Policy, error) {
	switch name {
	case NameHumanFirst, "":
		return HumanFirst(), nil
	case NameRandom:
		return SeededRandom(cfg.Seed), nil
	case NameLRU:
		return LeastRecentlyUsed(), nil
	case NameRego:
		return NewRego(ctx, cfg.PolicyDir)
	default:
		return nil, goerr.New("unknown selection policy",
			goerr.V("name", name),
			goerr.V("supported", Names))
	}
}
