package adapter

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
)

// BigQuery is the analytics sink for outcome events
type BigQuery interface {
	// InsertOutcomes streams events into the outcome table
	InsertOutcomes(ctx context.Context, events []*model.ReviewOutcomeEvent) error

	// ListOutcomes reads events recorded at or after since, oldest first
	ListOutcomes(ctx context.Context, since time.Time) ([]*model.ReviewOutcomeEvent, error)
}

type bigqueryClient struct {
	client    *bigquery.Client
	datasetID string
	tableID   string
}

// BigQueryOption is a functional option for BigQuery client
type BigQueryOption func(*bigqueryClient)

// WithTable overrides the default "outcomes" table name
func WithTable(tableID string) BigQueryOption {
	return func(bq *bigqueryClient) {
		bq.tableID = tableID
	}
}

// NewBigQuery creates a new BigQuery client
func NewBigQuery(ctx context.Context, projectID, datasetID string, opts ...BigQueryOption) (BigQuery, error) {
	if datasetID == "" {
		return nil, goerr.New("dataset id is required")
	}

	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create BigQuery client")
	}

	bq := &bigqueryClient{
		client:    client,
		datasetID: datasetID,
		tableID:   "outcomes",
	}

	for _, opt := range opts {
		opt(bq)
	}

	return bq, nil
}

// outcomeRow is the table schema. Plain field types keep schema inference and
// row loading independent of the model's named types.
type outcomeRow struct {
	ID                     string    `bigquery:"id"`
	LearnerID              string    `bigquery:"learner_id"`
	ItemID                 string    `bigquery:"item_id"`
	VariantID              string    `bigquery:"variant_id"`
	Correctness            int64     `bigquery:"correctness"`
	ResponseTimeMs         int64     `bigquery:"response_time_ms"`
	NReps                  int64     `bigquery:"n_reps"`
	TimeSinceLastReviewSec float64   `bigquery:"time_since_last_review_sec"`
	Timestamp              time.Time `bigquery:"timestamp"`
}

func newOutcomeRow(ev *model.ReviewOutcomeEvent) *outcomeRow {
	return &outcomeRow{
		ID:                     string(ev.ID),
		LearnerID:              string(ev.LearnerID),
		ItemID:                 string(ev.ItemID),
		VariantID:              string(ev.VariantID),
		Correctness:            int64(ev.Correctness),
		ResponseTimeMs:         ev.ResponseTimeMs,
		NReps:                  int64(ev.NReps),
		TimeSinceLastReviewSec: ev.TimeSinceLastReviewSec,
		Timestamp:              ev.Timestamp,
	}
}

func (r *outcomeRow) event() *model.ReviewOutcomeEvent {
	return &model.ReviewOutcomeEvent{
		ID:                     model.EventID(r.ID),
		LearnerID:              model.LearnerID(r.LearnerID),
		ItemID:                 model.StudyItemID(r.ItemID),
		VariantID:              model.VariantID(r.VariantID),
		Correctness:            int(r.Correctness),
		ResponseTimeMs:         r.ResponseTimeMs,
		NReps:                  int(r.NReps),
		TimeSinceLastReviewSec: r.TimeSinceLastReviewSec,
		Timestamp:              r.Timestamp,
	}
}

// InsertOutcomes streams events into the outcome table
func (bq *bigqueryClient) InsertOutcomes(ctx context.Context, events []*model.ReviewOutcomeEvent) error {
	if len(events) == 0 {
		return nil
	}

	rows := make([]*outcomeRow, len(events))
	for i, ev := range events {
		rows[i] = newOutcomeRow(ev)
	}

	inserter := bq.client.Dataset(bq.datasetID).Table(bq.tableID).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return goerr.Wrap(err, "failed to insert outcomes",
			goerr.V("dataset", bq.datasetID),
			goerr.V("table", bq.tableID),
			goerr.V("count", len(rows)))
	}
	return nil
}

// ListOutcomes reads events recorded at or after since, oldest first
func (bq *bigqueryClient) ListOutcomes(ctx context.Context, since time.Time) ([]*model.ReviewOutcomeEvent, error) {
	q := bq.client.Query(fmt.Sprintf(
		"SELECT * FROM `%s.%s.%s` WHERE timestamp >= @since ORDER BY timestamp",
		bq.client.Project(), bq.datasetID, bq.tableID))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "since", Value: since},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query outcomes")
	}

	var events []*model.ReviewOutcomeEvent
	for {
		var row outcomeRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate outcome rows")
		}
		events = append(events, row.event())
	}

	return events, nil
}
