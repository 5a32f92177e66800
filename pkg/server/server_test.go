package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eduardo5010/study-cycle/pkg/adapter"
	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/eduardo5010/study-cycle/pkg/repository"
	"github.com/eduardo5010/study-cycle/pkg/server"
	"github.com/eduardo5010/study-cycle/pkg/usecase/review"
	"github.com/m-mizutani/gt"
)

func newServer(t *testing.T, opts ...server.Option) (*httptest.Server, *repository.Memory) {
	t.Helper()
	repo := repository.NewMemory()
	uc := review.New(repo, nil)
	ts := httptest.NewServer(server.New(uc, repo, opts...))
	t.Cleanup(ts.Close)
	return ts, repo
}

func post(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	gt.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	gt.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestPostEvent(t *testing.T) {
	ts, repo := newServer(t)

	testCases := map[string]struct {
		body   any
		status int
	}{
		"valid": {
			body:   map[string]any{"userId": "u1", "itemId": "i1", "correctness": 1, "responseTimeMs": 900},
			status: http.StatusCreated,
		},
		"missing user": {
			body:   map[string]any{"itemId": "i1", "correctness": 1},
			status: http.StatusBadRequest,
		},
		"missing correctness": {
			body:   map[string]any{"userId": "u1", "itemId": "i1"},
			status: http.StatusBadRequest,
		},
		"non binary correctness": {
			body:   map[string]any{"userId": "u1", "itemId": "i1", "correctness": 3},
			status: http.StatusBadRequest,
		},
		"not json": {
			body:   "plain text",
			status: http.StatusBadRequest,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			resp := post(t, ts.URL+"/api/ml/events", tc.body)
			gt.Equal(t, resp.StatusCode, tc.status)
		})
	}

	events, err := repo.ListOutcomes(context.Background(), model.OutcomeQuery{})
	gt.NoError(t, err)
	gt.A(t, events).Length(1)
	gt.Equal(t, events[0].ResponseTimeMs, int64(900))
}

func TestListEvents(t *testing.T) {
	ts, _ := newServer(t)

	for _, user := range []string{"u1", "u1", "u2"} {
		resp := post(t, ts.URL+"/api/ml/events", map[string]any{"userId": user, "itemId": "i1", "correctness": 0})
		gt.Equal(t, resp.StatusCode, http.StatusCreated)
	}

	get := func(query string) []*model.ReviewOutcomeEvent {
		resp, err := http.Get(ts.URL + "/api/ml/events" + query)
		gt.NoError(t, err)
		defer resp.Body.Close()
		gt.Equal(t, resp.StatusCode, http.StatusOK)

		var events []*model.ReviewOutcomeEvent
		gt.NoError(t, json.NewDecoder(resp.Body).Decode(&events))
		return events
	}

	gt.A(t, get("")).Length(3)
	gt.A(t, get("?userId=u1")).Length(2)
	gt.A(t, get("?userId=u1&limit=1")).Length(1)
	gt.A(t, get("?userId=nobody")).Length(0)

	resp, err := http.Get(ts.URL + "/api/ml/events?limit=abc")
	gt.NoError(t, err)
	resp.Body.Close()
	gt.Equal(t, resp.StatusCode, http.StatusBadRequest)
}

func TestPredict(t *testing.T) {
	ts, _ := newServer(t)

	resp := post(t, ts.URL+"/api/ml/predict", map[string]any{
		"lambda":             0.3,
		"candidateIntervals": []float64{3600, 86400, 604800},
	})
	gt.Equal(t, resp.StatusCode, http.StatusOK)

	var body model.PredictResponse
	gt.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	gt.A(t, body.Candidates).Length(3)
	gt.Equal(t, body.Lambda, 0.3)
	gt.Equal(t, body.Model, "exponential-decay")
	for i := 1; i < len(body.Candidates); i++ {
		gt.True(t, body.Candidates[i].PredictedRetention < body.Candidates[i-1].PredictedRetention)
	}

	bad := post(t, ts.URL+"/api/ml/predict", map[string]any{"lambda": 2})
	gt.Equal(t, bad.StatusCode, http.StatusBadRequest)
}

func TestLambdaEndpoints(t *testing.T) {
	ts, _ := newServer(t)

	resp, err := http.Get(ts.URL + "/api/ml/lambda/u1")
	gt.NoError(t, err)
	var got model.LambdaPayload
	gt.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	resp.Body.Close()
	gt.Equal(t, got.Lambda, model.DefaultLambda)
	gt.Equal(t, got.Source, model.LambdaSourceDefault)

	set := post(t, ts.URL+"/api/ml/lambda/u1", map[string]any{"lambda": 0.25, "source": "remote"})
	gt.Equal(t, set.StatusCode, http.StatusOK)

	bad := post(t, ts.URL+"/api/ml/lambda/u1", map[string]any{"lambda": 0})
	gt.Equal(t, bad.StatusCode, http.StatusBadRequest)

	resp, err = http.Get(ts.URL + "/api/ml/lambda/u1")
	gt.NoError(t, err)
	gt.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	resp.Body.Close()
	gt.Equal(t, got.Lambda, 0.25)
	gt.Equal(t, got.Source, model.LambdaSourceRemote)
}

func TestBearerToken(t *testing.T) {
	ts, _ := newServer(t, server.WithBearerToken("s3cret"))

	resp := post(t, ts.URL+"/api/ml/predict", map[string]any{})
	gt.Equal(t, resp.StatusCode, http.StatusUnauthorized)

	health, err := http.Get(ts.URL + "/health")
	gt.NoError(t, err)
	health.Body.Close()
	gt.Equal(t, health.StatusCode, http.StatusOK)

	client := adapter.NewPredictor(ts.URL, adapter.WithBearerToken("s3cret"))
	_, err = client.Predict(context.Background(), &model.PredictRequest{})
	gt.NoError(t, err)

	wrong := adapter.NewPredictor(ts.URL, adapter.WithBearerToken("nope"))
	_, err = wrong.Predict(context.Background(), &model.PredictRequest{})
	gt.True(t, errors.Is(err, adapter.ErrPredictorUnavailable))
}

// TestPredictorRoundTrip drives the service through the client used by the
// review flow of another instance
func TestPredictorRoundTrip(t *testing.T) {
	ctx := context.Background()
	ts, repo := newServer(t)
	client := adapter.NewPredictor(ts.URL)

	correct := 1
	ts1 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	gt.NoError(t, client.LogEvent(ctx, &model.OutcomePayload{
		UserID:      "u1",
		ItemID:      "i1",
		Timestamp:   &ts1,
		Correctness: &correct,
	}))

	events, err := repo.ListOutcomes(ctx, model.OutcomeQuery{LearnerID: "u1"})
	gt.NoError(t, err)
	gt.A(t, events).Length(1)
	gt.Equal(t, events[0].Timestamp, ts1)

	gt.NoError(t, client.PutLambda(ctx, "u1", &model.LambdaPayload{Lambda: 0.4, Source: model.LambdaSourceManual}))
	lambda, err := client.GetLambda(ctx, "u1")
	gt.NoError(t, err)
	gt.Equal(t, lambda.Lambda, 0.4)

	// a second review flow using this service as its remote predictor
	remote := review.New(repository.NewMemory(), nil, review.WithPredictor(client))
	rec := remote.RecommendNextInterval(ctx, model.IntervalQuery{LearnerID: "u1", ItemID: "i1"})
	gt.Equal(t, rec.Source, model.SourceRemote)
	gt.Equal(t, rec.Model, "exponential-decay")
}
