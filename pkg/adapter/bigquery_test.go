package adapter_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/eduardo5010/study-cycle/pkg/adapter"
	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/m-mizutani/gt"
)

func TestBigQueryInsertOutcomes(t *testing.T) {
	projectID := os.Getenv("TEST_BIGQUERY_PROJECT_ID")
	datasetID := os.Getenv("TEST_BIGQUERY_DATASET_ID")
	if projectID == "" || datasetID == "" {
		t.Skip("TEST_BIGQUERY_PROJECT_ID and TEST_BIGQUERY_DATASET_ID must be set")
	}

	ctx := context.Background()
	bq, err := adapter.NewBigQuery(ctx, projectID, datasetID)
	gt.NoError(t, err)

	now := time.Now().UTC()
	gt.NoError(t, bq.InsertOutcomes(ctx, []*model.ReviewOutcomeEvent{
		{
			ID:          model.NewEventID(),
			LearnerID:   "bq-test-learner",
			ItemID:      "bq-test-item",
			Correctness: 1,
			Timestamp:   now,
		},
	}))

	// streamed rows may not be queryable yet, so only check the query runs
	_, err = bq.ListOutcomes(ctx, now.Add(-time.Hour))
	gt.NoError(t, err)
}

func TestNewBigQueryRequiresDataset(t *testing.T) {
	_, err := adapter.NewBigQuery(context.Background(), "project", "")
	gt.Error(t, err)
}
