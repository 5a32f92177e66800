// Package mcp exposes the review scheduler as MCP tools so that assistants
// can pick content, schedule reviews and log answers.
package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/eduardo5010/study-cycle/pkg/usecase/review"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverName = "studycycle"

type selectVariantParams struct {
	ItemID    string `json:"item_id" jsonschema:"Study item to pick a variant for"`
	LearnerID string `json:"learner_id,omitempty" jsonschema:"Learner who will see the variant"`
}

type recommendIntervalParams struct {
	LearnerID          string    `json:"learner_id,omitempty" jsonschema:"Learner whose decay rate is used"`
	ItemID             string    `json:"item_id,omitempty" jsonschema:"Study item whose history is used"`
	Lambda             *float64  `json:"lambda,omitempty" jsonschema:"Decay rate per day overriding the learner profile"`
	CandidateIntervals []float64 `json:"candidate_intervals,omitempty" jsonschema:"Candidate intervals in seconds"`
}

type recordOutcomeParams struct {
	LearnerID      string `json:"learner_id" jsonschema:"Learner who answered"`
	ItemID         string `json:"item_id" jsonschema:"Study item that was reviewed"`
	VariantID      string `json:"variant_id,omitempty" jsonschema:"Variant that was shown"`
	Correctness    int    `json:"correctness" jsonschema:"1 if recalled correctly, 0 otherwise"`
	ResponseTimeMs int64  `json:"response_time_ms,omitempty" jsonschema:"Time taken to answer in milliseconds"`
}

type learnerParams struct {
	LearnerID string `json:"learner_id" jsonschema:"Learner identifier"`
}

// NewServer builds an MCP server whose tools call uc
func NewServer(uc *review.UseCase, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "select_variant",
		Description: "Choose the content variant a learner should see for a study item. Falls back to generated content when no variant exists.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, params *selectVariantParams) (*mcp.CallToolResult, any, error) {
		if params.ItemID == "" {
			return nil, nil, goerr.New("item_id is required")
		}
		sel := uc.SelectVariant(ctx, model.StudyItemID(params.ItemID), model.LearnerID(params.LearnerID))
		return jsonResult(sel)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "recommend_interval",
		Description: "Recommend how many seconds to wait before the next review of an item, with the predicted retention of every candidate interval.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, params *recommendIntervalParams) (*mcp.CallToolResult, any, error) {
		rec := uc.RecommendNextInterval(ctx, model.IntervalQuery{
			LearnerID:          model.LearnerID(params.LearnerID),
			ItemID:             model.StudyItemID(params.ItemID),
			Lambda:             params.Lambda,
			CandidateIntervals: params.CandidateIntervals,
		})
		return jsonResult(rec)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "record_outcome",
		Description: "Record whether a learner recalled a study item. Updates the learner's forgetting rate.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, params *recordOutcomeParams) (*mcp.CallToolResult, any, error) {
		recorded := uc.Record(ctx, review.Outcome{
			LearnerID:      model.LearnerID(params.LearnerID),
			ItemID:         model.StudyItemID(params.ItemID),
			VariantID:      model.VariantID(params.VariantID),
			Correctness:    params.Correctness,
			ResponseTimeMs: params.ResponseTimeMs,
		})
		if recorded.Event == nil {
			return nil, nil, goerr.New("invalid outcome",
				goerr.V("learner_id", params.LearnerID),
				goerr.V("item_id", params.ItemID),
				goerr.V("correctness", params.Correctness))
		}
		return jsonResult(recorded)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "due_items",
		Description: "List the items a learner should review now, most overdue first.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, params *learnerParams) (*mcp.CallToolResult, any, error) {
		due, err := uc.DueItems(ctx, model.LearnerID(params.LearnerID), time.Now())
		if err != nil {
			return nil, nil, err
		}
		return jsonResult(due)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "adjust_lambda",
		Description: "Rescale a learner's forgetting rate from their recent accuracy.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, params *learnerParams) (*mcp.CallToolResult, any, error) {
		profile, err := uc.AdjustLambda(ctx, model.LearnerID(params.LearnerID))
		if err != nil {
			return nil, nil, err
		}
		return jsonResult(profile)
	})

	return server
}

// Handler serves server over streamable HTTP
func Handler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server
	}, nil)
}

// RunStdio serves server on stdin and stdout until ctx is done or the client
// disconnects
func RunStdio(ctx context.Context, server *mcp.Server) error {
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return goerr.Wrap(err, "MCP server stopped")
	}
	return nil
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to marshal tool result")
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(raw)},
		},
	}, nil, nil
}
