package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/eduardo5010/study-cycle/pkg/usecase/review"
	"github.com/eduardo5010/study-cycle/pkg/utils/logging"
)

func (s *Server) handlePostEvent(w http.ResponseWriter, r *http.Request) {
	var payload model.OutcomePayload
	if err := decodeJSON(w, r, &payload); err != nil {
		badRequest(w, err)
		return
	}

	if payload.UserID == "" || payload.ItemID == "" {
		writeError(w, http.StatusBadRequest, "userId and itemId are required")
		return
	}
	if payload.Correctness == nil || (*payload.Correctness != 0 && *payload.Correctness != 1) {
		writeError(w, http.StatusBadRequest, "correctness must be 0 or 1")
		return
	}

	o := review.Outcome{
		LearnerID:      payload.UserID,
		ItemID:         payload.ItemID,
		Correctness:    *payload.Correctness,
		ResponseTimeMs: payload.ResponseTimeMs,
	}
	if payload.Timestamp != nil {
		o.Timestamp = *payload.Timestamp
	}
	if payload.NReps > 0 {
		o.NReps = &payload.NReps
	}
	if payload.TimeSinceLastReviewSec > 0 {
		o.TimeSinceLastReviewSec = &payload.TimeSinceLastReviewSec
	}

	recorded := s.review.Record(r.Context(), o)
	if recorded.Event == nil {
		writeError(w, http.StatusBadRequest, "invalid outcome")
		return
	}
	if !recorded.Persisted {
		writeError(w, http.StatusServiceUnavailable, "failed to store outcome")
		return
	}
	writeJSON(w, http.StatusCreated, recorded.Event)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := model.OutcomeQuery{
		LearnerID: model.LearnerID(r.URL.Query().Get("userId")),
		ItemID:    model.StudyItemID(r.URL.Query().Get("itemId")),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		q.Limit = limit
	}

	events, err := s.repo.ListOutcomes(r.Context(), q)
	if err != nil {
		logging.From(r.Context()).Error("failed to list outcomes", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list outcomes")
		return
	}
	if events == nil {
		events = []*model.ReviewOutcomeEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req model.PredictRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if req.Lambda != nil {
		if err := model.ValidateLambda(*req.Lambda); err != nil {
			writeError(w, http.StatusBadRequest, "lambda must be in (0, 1]")
			return
		}
	}

	rec := s.review.RecommendNextInterval(r.Context(), model.IntervalQuery{
		LearnerID:            req.UserID,
		ItemID:               req.ItemID,
		Lambda:               req.Lambda,
		SumPrevIntervalOverN: req.SumTOverN,
		NNext:                req.NNext,
		CandidateIntervals:   req.CandidateIntervals,
	})

	writeJSON(w, http.StatusOK, &model.PredictResponse{
		RecommendedIntervalSec: rec.RecommendedIntervalSec,
		PredictedRetention:     rec.PredictedRetention,
		Model:                  rec.Model,
		Lambda:                 rec.LambdaUsed,
		S:                      rec.S,
		Candidates:             rec.Candidates,
	})
}

func (s *Server) handleGetLambda(w http.ResponseWriter, r *http.Request) {
	userID := model.LearnerID(r.PathValue("userId"))
	profile := s.review.Profile(r.Context(), userID)

	writeJSON(w, http.StatusOK, &model.LambdaPayload{
		UserID: userID,
		Lambda: profile.Lambda,
		Source: profile.Source,
	})
}

func (s *Server) handlePutLambda(w http.ResponseWriter, r *http.Request) {
	userID := model.LearnerID(r.PathValue("userId"))

	var payload model.LambdaPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		badRequest(w, err)
		return
	}

	profile, err := s.review.SetLambda(r.Context(), userID, payload.Lambda, payload.Source)
	if err != nil {
		if errors.Is(err, model.ErrInvalidLambda) {
			writeError(w, http.StatusBadRequest, "lambda must be in (0, 1]")
			return
		}
		logging.From(r.Context()).Error("failed to set lambda", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "failed to set lambda")
		return
	}

	writeJSON(w, http.StatusOK, &model.LambdaPayload{
		UserID: profile.LearnerID,
		Lambda: profile.Lambda,
		Source: profile.Source,
	})
}
