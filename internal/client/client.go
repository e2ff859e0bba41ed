// Package client is the typed HTTP client for the Initiative API. All
// backend communication in the CLI goes through here.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/initiativehq/initiativectl/pkg/models"
)

// Client is the interface for talking to the Initiative API.
type Client interface {
	Login(ctx context.Context, email, password string) (*models.Session, error)

	ListInitiatives(ctx context.Context, page, limit int) ([]*models.Initiative, *Pagination, error)
	CreateInitiative(ctx context.Context, req CreateInitiativeRequest) (*models.Initiative, error)
	GetInitiative(ctx context.Context, id uuid.UUID) (*models.Initiative, error)
	UpdateInitiative(ctx context.Context, id uuid.UUID, req UpdateInitiativeRequest) (*models.Initiative, error)
	DeleteInitiative(ctx context.Context, id uuid.UUID) error

	ListQuestions(ctx context.Context, initiativeID uuid.UUID) ([]*models.Question, error)
	AnswerQuestion(ctx context.Context, initiativeID, questionID uuid.UUID, answer string) (*models.Question, error)
	GenerateQuestions(ctx context.Context, initiativeID uuid.UUID) (*models.Job, error)

	EvaluateReadiness(ctx context.Context, initiativeID uuid.UUID) (*models.Readiness, error)

	GenerateMRD(ctx context.Context, initiativeID uuid.UUID) (*models.Job, error)
	GetMRD(ctx context.Context, initiativeID uuid.UUID) (*models.MRD, error)

	CalculateScore(ctx context.Context, initiativeID uuid.UUID) (*models.Job, error)
	GetScore(ctx context.Context, initiativeID uuid.UUID) (*models.Score, error)

	GetJob(ctx context.Context, jobID string) (*models.Job, error)
}

// CreateInitiativeRequest is the body for POST /api/initiatives.
type CreateInitiativeRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// UpdateInitiativeRequest is the body for PATCH /api/initiatives/{id}.
// Nil fields are left unchanged by the backend.
type UpdateInitiativeRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// Pagination is the `meta` block returned on collection responses.
type Pagination struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasNext bool `json:"has_next"`
}

// HTTPClient implements Client against the Initiative API's REST surface.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a new Initiative API client. token may be empty;
// call SetToken after Login for session-based auth.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// SetToken replaces the Bearer credential used on subsequent requests.
func (c *HTTPClient) SetToken(token string) {
	c.token = token
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*models.Session, error) {
	body := map[string]string{"email": email, "password": password}
	var session models.Session
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *HTTPClient) ListInitiatives(ctx context.Context, page, limit int) ([]*models.Initiative, *Pagination, error) {
	path := fmt.Sprintf("/api/initiatives?page=%d&limit=%d", page, limit)
	var initiatives []*models.Initiative
	meta, err := c.doList(ctx, path, &initiatives)
	if err != nil {
		return nil, nil, err
	}
	return initiatives, meta, nil
}

func (c *HTTPClient) CreateInitiative(ctx context.Context, req CreateInitiativeRequest) (*models.Initiative, error) {
	var initiative models.Initiative
	if err := c.do(ctx, http.MethodPost, "/api/initiatives", req, &initiative); err != nil {
		return nil, err
	}
	return &initiative, nil
}

func (c *HTTPClient) GetInitiative(ctx context.Context, id uuid.UUID) (*models.Initiative, error) {
	var initiative models.Initiative
	if err := c.do(ctx, http.MethodGet, "/api/initiatives/"+id.String(), nil, &initiative); err != nil {
		return nil, err
	}
	return &initiative, nil
}

func (c *HTTPClient) UpdateInitiative(ctx context.Context, id uuid.UUID, req UpdateInitiativeRequest) (*models.Initiative, error) {
	var initiative models.Initiative
	if err := c.do(ctx, http.MethodPatch, "/api/initiatives/"+id.String(), req, &initiative); err != nil {
		return nil, err
	}
	return &initiative, nil
}

func (c *HTTPClient) DeleteInitiative(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/initiatives/"+id.String(), nil, nil)
}

func (c *HTTPClient) ListQuestions(ctx context.Context, initiativeID uuid.UUID) ([]*models.Question, error) {
	var questions []*models.Question
	path := fmt.Sprintf("/api/initiatives/%s/questions", initiativeID)
	if err := c.do(ctx, http.MethodGet, path, nil, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

func (c *HTTPClient) AnswerQuestion(ctx context.Context, initiativeID, questionID uuid.UUID, answer string) (*models.Question, error) {
	var question models.Question
	path := fmt.Sprintf("/api/initiatives/%s/questions/%s/answer", initiativeID, questionID)
	body := map[string]string{"answer": answer}
	if err := c.do(ctx, http.MethodPut, path, body, &question); err != nil {
		return nil, err
	}
	return &question, nil
}

func (c *HTTPClient) GenerateQuestions(ctx context.Context, initiativeID uuid.UUID) (*models.Job, error) {
	return c.startJob(ctx, fmt.Sprintf("/api/initiatives/%s/questions/generate", initiativeID))
}

func (c *HTTPClient) EvaluateReadiness(ctx context.Context, initiativeID uuid.UUID) (*models.Readiness, error) {
	var readiness models.Readiness
	path := fmt.Sprintf("/api/initiatives/%s/readiness", initiativeID)
	if err := c.do(ctx, http.MethodPost, path, nil, &readiness); err != nil {
		return nil, err
	}
	return &readiness, nil
}

func (c *HTTPClient) GenerateMRD(ctx context.Context, initiativeID uuid.UUID) (*models.Job, error) {
	return c.startJob(ctx, fmt.Sprintf("/api/initiatives/%s/mrd/generate", initiativeID))
}

func (c *HTTPClient) GetMRD(ctx context.Context, initiativeID uuid.UUID) (*models.MRD, error) {
	var mrd models.MRD
	path := fmt.Sprintf("/api/initiatives/%s/mrd", initiativeID)
	if err := c.do(ctx, http.MethodGet, path, nil, &mrd); err != nil {
		return nil, err
	}
	return &mrd, nil
}

func (c *HTTPClient) CalculateScore(ctx context.Context, initiativeID uuid.UUID) (*models.Job, error) {
	return c.startJob(ctx, fmt.Sprintf("/api/initiatives/%s/score/calculate", initiativeID))
}

func (c *HTTPClient) GetScore(ctx context.Context, initiativeID uuid.UUID) (*models.Score, error) {
	var score models.Score
	path := fmt.Sprintf("/api/initiatives/%s/score", initiativeID)
	if err := c.do(ctx, http.MethodGet, path, nil, &score); err != nil {
		return nil, err
	}
	return &score, nil
}

func (c *HTTPClient) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+jobID, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// startJob POSTs to an endpoint that enqueues an async job and returns the
// accepted Job record.
func (c *HTTPClient) startJob(ctx context.Context, path string) (*models.Job, error) {
	var job models.Job
	if err := c.do(ctx, http.MethodPost, path, nil, &job); err != nil {
		return nil, err
	}
	if job.ID == "" {
		return nil, fmt.Errorf("%w: start response missing job id", ErrAPIError)
	}
	return &job, nil
}

// do issues one request and decodes the `data` envelope into out. A nil out
// discards the body (e.g. DELETE).
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}
	return nil
}

// doList is do for collection endpoints, which carry a meta block next to data.
func (c *HTTPClient) doList(ctx context.Context, path string, out any) (*Pagination, error) {
	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var env collectionEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return nil, fmt.Errorf("decoding response data: %w", err)
	}
	return &env.Meta, nil
}

func (c *HTTPClient) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var buf *bytes.Buffer
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		buf = bytes.NewBuffer(b)
	} else {
		buf = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	return resp, nil
}

// checkStatus maps non-2xx responses to sentinel errors, preserving the
// backend's error code and message when the body carries them.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var env errorEnvelope
	_ = json.NewDecoder(resp.Body).Decode(&env)

	msg := env.Error.Message
	if msg == "" {
		msg = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	default:
		if env.Error.Code != "" {
			return fmt.Errorf("%w: %s: %s", ErrAPIError, env.Error.Code, msg)
		}
		return fmt.Errorf("%w: status %d: %s", ErrAPIError, resp.StatusCode, msg)
	}
}

// --- Initiative API response envelope ---

type envelope struct {
	Data json.RawMessage `json:"data"`
}

type collectionEnvelope struct {
	Data json.RawMessage `json:"data"`
	Meta Pagination      `json:"meta"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
