// Package workflow submits long-running jobs to the external workflow engine.
//
// Every submission returns as soon as the engine accepts it. Results arrive
// later on the callback endpoint, matched by the metadata echoed back.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/RohitLad/resume-markup/internal/shared/metrics"
	"github.com/RohitLad/resume-markup/internal/shared/telemetry"
)

// Kind is the callback type discriminator carried in request metadata.
type Kind string

const (
	KindParseResume           Kind = "parse_resume"
	KindGenerateResume        Kind = "generate_resume"
	KindGenerateKnowledgeBase Kind = "generate_knowledge_base"
)

const (
	defaultTimeout   = 10 * time.Second
	callbackPath     = "/api/v1/webhooks/workflow"
	maxErrorBodySize = 64 << 10
)

// Options configures a Client.
type Options struct {
	BaseURL           string
	APIKey            string
	CallbackURL       string
	AppURL            string
	TunnelURL         string
	Env               string
	Timeout           time.Duration
	ParsePath         string
	GeneratePath      string
	KnowledgeBasePath string
}

// Client talks to the workflow engine over HTTP.
type Client struct {
	opts       Options
	httpClient *http.Client
	now        func() time.Time
}

// NewClient constructs a Client with an explicit request timeout.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.ParsePath == "" {
		opts.ParsePath = "parse-resume"
	}
	if opts.GeneratePath == "" {
		opts.GeneratePath = "generate-resume"
	}
	if opts.KnowledgeBasePath == "" {
		opts.KnowledgeBasePath = "generate-knowledge-base"
	}
	return &Client{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
		now:        time.Now,
	}
}

// SubmissionResult identifies an accepted submission.
type SubmissionResult struct {
	CorrelationID string
	Kind          Kind
	SubmittedAt   time.Time
}

// ParseRequest carries a PDF to be parsed into a resume document.
type ParseRequest struct {
	File        []byte
	FileName    string
	CallbackURL string
	UserID      string
}

// GenerateRequest asks for a tailored resume.
type GenerateRequest struct {
	Profile        map[string]any
	KnowledgeBase  map[string]any
	JobTitle       string
	JobDescription string
	CallbackURL    string
	UserID         string
	ResumeID       string
}

// KnowledgeBaseRequest asks for a knowledge base synthesized from profile data.
type KnowledgeBaseRequest struct {
	Profile     map[string]any
	CallbackURL string
	UserID      string
}

type metadata struct {
	Type      Kind   `json:"type"`
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id,omitempty"`
	ResumeID  string `json:"resume_id,omitempty"`
}

type generatePayload struct {
	JobTitle       string         `json:"job_title"`
	JobDescription string         `json:"job_description"`
	Profile        map[string]any `json:"profile"`
	KnowledgeBase  map[string]any `json:"knowledge_base,omitempty"`
	WebhookURL     string         `json:"webhook_url"`
	Metadata       metadata       `json:"metadata"`
}

type knowledgeBasePayload struct {
	Profile    map[string]any `json:"profile"`
	WebhookURL string         `json:"webhook_url"`
	Metadata   metadata       `json:"metadata"`
}

// SubmitParse uploads the raw PDF for asynchronous parsing.
func (c *Client) SubmitParse(ctx context.Context, req ParseRequest) (SubmissionResult, error) {
	if len(req.File) == 0 {
		return SubmissionResult{}, fmt.Errorf("%w: empty file", ErrInvalidInput)
	}
	if strings.TrimSpace(req.UserID) == "" {
		return SubmissionResult{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	endpoint, err := c.endpoint(c.opts.ParsePath)
	if err != nil {
		return SubmissionResult{}, err
	}

	requestID := uuid.NewString()
	webhook := c.webhook(req.CallbackURL)
	meta, err := json.Marshal(metadata{Type: KindParseResume, RequestID: requestID, UserID: req.UserID})
	if err != nil {
		return SubmissionResult{}, err
	}
	q := url.Values{}
	q.Set("webhook_url", webhook)
	q.Set("request_id", requestID)
	q.Set("metadata", string(meta))
	endpoint = endpoint + "?" + q.Encode()

	telemetry.Info("workflow.parse.submit", map[string]any{
		"request_id":  requestID,
		"user_id":     req.UserID,
		"file_name":   req.FileName,
		"file_size":   len(req.File),
		"webhook_url": webhook,
	})

	return c.do(ctx, KindParseResume, requestID, endpoint, "application/pdf", req.File)
}

// SubmitGenerate submits a tailored resume generation request.
func (c *Client) SubmitGenerate(ctx context.Context, req GenerateRequest) (SubmissionResult, error) {
	if strings.TrimSpace(req.ResumeID) == "" {
		return SubmissionResult{}, fmt.Errorf("%w: resume id is required", ErrInvalidInput)
	}
	if len(req.Profile) == 0 {
		return SubmissionResult{}, fmt.Errorf("%w: profile is required", ErrInvalidInput)
	}
	endpoint, err := c.endpoint(c.opts.GeneratePath)
	if err != nil {
		return SubmissionResult{}, err
	}

	requestID := uuid.NewString()
	payload := generatePayload{
		JobTitle:       req.JobTitle,
		JobDescription: req.JobDescription,
		Profile:        req.Profile,
		KnowledgeBase:  req.KnowledgeBase,
		WebhookURL:     c.webhook(req.CallbackURL),
		Metadata: metadata{
			Type:      KindGenerateResume,
			RequestID: requestID,
			UserID:    req.UserID,
			ResumeID:  req.ResumeID,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return SubmissionResult{}, fmt.Errorf("encode generate payload: %w", err)
	}

	telemetry.Info("workflow.generate.submit", map[string]any{
		"request_id": requestID,
		"user_id":    req.UserID,
		"resume_id":  req.ResumeID,
		"job_title":  req.JobTitle,
	})

	return c.do(ctx, KindGenerateResume, requestID, endpoint, "application/json", body)
}

// SubmitKnowledgeBase submits a knowledge base synthesis request.
func (c *Client) SubmitKnowledgeBase(ctx context.Context, req KnowledgeBaseRequest) (SubmissionResult, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return SubmissionResult{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if len(req.Profile) == 0 {
		return SubmissionResult{}, fmt.Errorf("%w: profile is required", ErrInvalidInput)
	}
	endpoint, err := c.endpoint(c.opts.KnowledgeBasePath)
	if err != nil {
		return SubmissionResult{}, err
	}

	requestID := uuid.NewString()
	body, err := json.Marshal(knowledgeBasePayload{
		Profile:    req.Profile,
		WebhookURL: c.webhook(req.CallbackURL),
		Metadata: metadata{
			Type:      KindGenerateKnowledgeBase,
			RequestID: requestID,
			UserID:    req.UserID,
		},
	})
	if err != nil {
		return SubmissionResult{}, fmt.Errorf("encode knowledge base payload: %w", err)
	}

	telemetry.Info("workflow.knowledge_base.submit", map[string]any{
		"request_id": requestID,
		"user_id":    req.UserID,
	})

	return c.do(ctx, KindGenerateKnowledgeBase, requestID, endpoint, "application/json", body)
}

// TestConnectivity reports whether the engine base URL answers with 2xx.
func (c *Client) TestConnectivity(ctx context.Context) bool {
	base := strings.TrimSpace(c.opts.BaseURL)
	if base == "" {
		telemetry.Warn("workflow.connectivity.not_configured", nil)
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base, nil)
	if err != nil {
		telemetry.Error("workflow.connectivity.failed", map[string]any{"error": err.Error()})
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.Error("workflow.connectivity.failed", map[string]any{"error": err.Error()})
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	telemetry.Info("workflow.connectivity", map[string]any{
		"success": ok,
		"status":  resp.StatusCode,
	})
	return ok
}

// CallbackURL returns the URL the engine should POST results to.
func (c *Client) CallbackURL() string {
	if u := strings.TrimSpace(c.opts.CallbackURL); u != "" {
		return u
	}
	base := c.opts.AppURL
	if c.opts.Env != "production" && strings.TrimSpace(c.opts.TunnelURL) != "" {
		base = c.opts.TunnelURL
	}
	return strings.TrimRight(base, "/") + callbackPath
}

func (c *Client) webhook(override string) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	return c.CallbackURL()
}

func (c *Client) endpoint(path string) (string, error) {
	base := strings.TrimSpace(c.opts.BaseURL)
	if base == "" {
		return "", ErrNotConfigured
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/"), nil
}

func (c *Client) do(ctx context.Context, kind Kind, requestID, endpoint, contentType string, body []byte) (SubmissionResult, error) {
	start := c.now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return SubmissionResult{}, &TransportError{Kind: kind, URL: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set("API_KEY", c.opts.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveWorkflowSubmission(string(kind), "transport_error", time.Since(start))
		telemetry.Error("workflow.submit.transport_failed", map[string]any{
			"kind":       string(kind),
			"request_id": requestID,
			"url":        endpoint,
			"error":      err.Error(),
		})
		return SubmissionResult{}, &TransportError{Kind: kind, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		metrics.ObserveWorkflowSubmission(string(kind), "rejected", time.Since(start))
		telemetry.Error("workflow.submit.rejected", map[string]any{
			"kind":       string(kind),
			"request_id": requestID,
			"status":     resp.StatusCode,
			"body":       string(raw),
		})
		return SubmissionResult{}, &RemoteRejectedError{Kind: kind, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	elapsed := time.Since(start)
	metrics.ObserveWorkflowSubmission(string(kind), "ok", elapsed)
	telemetry.Info("workflow.submit.accepted", map[string]any{
		"kind":        string(kind),
		"request_id":  requestID,
		"status":      resp.StatusCode,
		"duration_ms": float64(elapsed.Microseconds()) / 1000.0,
	})

	return SubmissionResult{CorrelationID: requestID, Kind: kind, SubmittedAt: start}, nil
}
