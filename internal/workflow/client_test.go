package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{
		BaseURL:     srv.URL + "/webhook/",
		APIKey:      "secret",
		CallbackURL: "https://app.example.com/api/v1/webhooks/workflow",
		Timeout:     2 * time.Second,
	}), srv
}

func TestSubmitParseSendsRawPDF(t *testing.T) {
	var gotPath, gotType, gotKey string
	var gotBody []byte
	var gotQuery map[string][]string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotKey = r.Header.Get("API_KEY")
		gotQuery = r.URL.Query()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	})

	res, err := client.SubmitParse(context.Background(), ParseRequest{
		File:     []byte("%PDF-1.4 data"),
		FileName: "cv.pdf",
		UserID:   "u1",
	})
	require.NoError(t, err)

	assert.Equal(t, KindParseResume, res.Kind)
	_, err = uuid.Parse(res.CorrelationID)
	assert.NoError(t, err)
	assert.Equal(t, "/webhook/parse-resume", gotPath)
	assert.Equal(t, "application/pdf", gotType)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "%PDF-1.4 data", string(gotBody))
	assert.Equal(t, res.CorrelationID, gotQuery["request_id"][0])
	assert.Equal(t, "https://app.example.com/api/v1/webhooks/workflow", gotQuery["webhook_url"][0])

	var meta map[string]string
	require.NoError(t, json.Unmarshal([]byte(gotQuery["metadata"][0]), &meta))
	assert.Equal(t, "parse_resume", meta["type"])
	assert.Equal(t, res.CorrelationID, meta["request_id"])
	assert.Equal(t, "u1", meta["user_id"])
}

func TestSubmitParseEmptyFileMakesNoCall(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	_, err := client.SubmitParse(context.Background(), ParseRequest{UserID: "u1"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestSubmitGeneratePayload(t *testing.T) {
	var payload map[string]any
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/webhook/generate-resume", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusAccepted)
	})

	res, err := client.SubmitGenerate(context.Background(), GenerateRequest{
		Profile:        map[string]any{"basics": map[string]any{"name": "Ada"}},
		JobTitle:       "Engineer",
		JobDescription: "Build things",
		UserID:         "u1",
		ResumeID:       "r1",
	})
	require.NoError(t, err)

	assert.Equal(t, "Engineer", payload["job_title"])
	assert.Equal(t, "Build things", payload["job_description"])
	assert.Contains(t, payload, "profile")
	assert.NotContains(t, payload, "knowledge_base")
	meta := payload["metadata"].(map[string]any)
	assert.Equal(t, "generate_resume", meta["type"])
	assert.Equal(t, res.CorrelationID, meta["request_id"])
	assert.Equal(t, "r1", meta["resume_id"])
	assert.Equal(t, "u1", meta["user_id"])
}

func TestSubmitKnowledgeBasePayload(t *testing.T) {
	var payload map[string]any
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/webhook/generate-knowledge-base", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&payload)
	})

	res, err := client.SubmitKnowledgeBase(context.Background(), KnowledgeBaseRequest{
		Profile: map[string]any{"work": []any{"x"}},
		UserID:  "u1",
	})
	require.NoError(t, err)
	meta := payload["metadata"].(map[string]any)
	assert.Equal(t, "generate_knowledge_base", meta["type"])
	assert.Equal(t, res.CorrelationID, meta["request_id"])
}

func TestCorrelationIDsAreUnique(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	req := KnowledgeBaseRequest{Profile: map[string]any{"a": 1}, UserID: "u1"}

	first, err := client.SubmitKnowledgeBase(context.Background(), req)
	require.NoError(t, err)
	second, err := client.SubmitKnowledgeBase(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, first.CorrelationID, second.CorrelationID)
}

func TestRemoteRejectedCarriesStatusAndBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("workflow exploded"))
	})

	_, err := client.SubmitKnowledgeBase(context.Background(), KnowledgeBaseRequest{
		Profile: map[string]any{"a": 1},
		UserID:  "u1",
	})
	var rejected *RemoteRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, http.StatusInternalServerError, rejected.StatusCode)
	assert.Equal(t, "workflow exploded", rejected.Body)
}

func TestTransportErrorOnTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	_, err := client.SubmitGenerate(context.Background(), GenerateRequest{
		Profile:  map[string]any{"a": 1},
		ResumeID: "r1",
		UserID:   "u1",
	})
	var transport *TransportError
	require.True(t, errors.As(err, &transport))
	assert.Equal(t, KindGenerateResume, transport.Kind)
}

func TestNotConfigured(t *testing.T) {
	client := NewClient(Options{})
	_, err := client.SubmitParse(context.Background(), ParseRequest{File: []byte("x"), UserID: "u1"})
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, client.TestConnectivity(context.Background()))
}

func TestTestConnectivity(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(status)
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL})
	assert.True(t, client.TestConnectivity(context.Background()))

	status = http.StatusServiceUnavailable
	assert.False(t, client.TestConnectivity(context.Background()))

	srv.Close()
	assert.False(t, client.TestConnectivity(context.Background()))
}

func TestCallbackURL(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{
			name: "configured wins",
			opts: Options{CallbackURL: "https://hooks.example.com/cb", AppURL: "https://app.example.com"},
			want: "https://hooks.example.com/cb",
		},
		{
			name: "production uses app url",
			opts: Options{Env: "production", AppURL: "https://app.example.com/", TunnelURL: "https://tunnel.example.com"},
			want: "https://app.example.com/api/v1/webhooks/workflow",
		},
		{
			name: "dev prefers tunnel",
			opts: Options{Env: "dev", AppURL: "http://localhost:8080", TunnelURL: "https://abc.ngrok.io"},
			want: "https://abc.ngrok.io/api/v1/webhooks/workflow",
		},
		{
			name: "dev without tunnel",
			opts: Options{Env: "dev", AppURL: "http://localhost:8080"},
			want: "http://localhost:8080/api/v1/webhooks/workflow",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewClient(tt.opts).CallbackURL())
		})
	}
}
