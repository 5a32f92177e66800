package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrPredictorUnavailable = goerr.New("prediction service unavailable")
)

// Predictor is the client of the prediction and telemetry service
type Predictor interface {
	// Predict asks the service to rank candidate intervals
	Predict(ctx context.Context, req *model.PredictRequest) (*model.PredictResponse, error)

	// LogEvent forwards one outcome to the telemetry endpoint
	LogEvent(ctx context.Context, payload *model.OutcomePayload) error

	// GetLambda reads the service's decay rate for a learner
	GetLambda(ctx context.Context, userID model.LearnerID) (*model.LambdaPayload, error)

	// PutLambda pushes a decay rate for a learner
	PutLambda(ctx context.Context, userID model.LearnerID, payload *model.LambdaPayload) error
}

type predictorClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// PredictorOption is a functional option for the prediction client
type PredictorOption func(*predictorClient)

// WithBearerToken sets the Authorization header on every request
func WithBearerToken(token string) PredictorOption {
	return func(p *predictorClient) {
		p.token = token
	}
}

// WithHTTPClient replaces the default client with a 30 second timeout
func WithHTTPClient(c *http.Client) PredictorOption {
	return func(p *predictorClient) {
		p.httpClient = c
	}
}

// NewPredictor creates a client for the service at baseURL
func NewPredictor(baseURL string, opts ...PredictorOption) Predictor {
	p := &predictorClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *predictorClient) Predict(ctx context.Context, req *model.PredictRequest) (*model.PredictResponse, error) {
	var resp model.PredictResponse
	if err := p.do(ctx, http.MethodPost, "/api/ml/predict", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (p *predictorClient) LogEvent(ctx context.Context, payload *model.OutcomePayload) error {
	return p.do(ctx, http.MethodPost, "/api/ml/events", payload, nil)
}

func (p *predictorClient) GetLambda(ctx context.Context, userID model.LearnerID) (*model.LambdaPayload, error) {
	var resp model.LambdaPayload
	if err := p.do(ctx, http.MethodGet, "/api/ml/lambda/"+url.PathEscape(string(userID)), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (p *predictorClient) PutLambda(ctx context.Context, userID model.LearnerID, payload *model.LambdaPayload) error {
	return p.do(ctx, http.MethodPost, "/api/ml/lambda/"+url.PathEscape(string(userID)), payload, nil)
}

// do sends body as JSON and decodes a 2xx response into out when out is not
// nil. Transport errors and non-2xx statuses wrap ErrPredictorUnavailable.
func (p *predictorClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return goerr.Wrap(err, "failed to marshal request", goerr.V("path", path))
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return goerr.Wrap(err, "failed to create request", goerr.V("path", path))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(ErrPredictorUnavailable, "failed to send request",
			goerr.V("path", path),
			goerr.V("cause", err.Error()))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return goerr.Wrap(ErrPredictorUnavailable, "prediction service returned error",
			goerr.V("path", path),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(respBody)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return goerr.Wrap(ErrPredictorUnavailable, "failed to decode response",
			goerr.V("path", path),
			goerr.V("cause", err.Error()))
	}
	return nil
}
