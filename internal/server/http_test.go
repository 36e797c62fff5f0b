package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ishbor_bitrix/internal/repo"
	"ishbor_bitrix/internal/webhook"
)

type stubPipeline struct {
	result webhook.Result
	err    error
	last   webhook.Submission
}

func (p *stubPipeline) Process(_ context.Context, sub webhook.Submission) (webhook.Result, error) {
	p.last = sub
	if p.err != nil {
		return webhook.Result{}, p.err
	}
	return p.result, nil
}

type stubFiles struct {
	files   map[int64]repo.StoredFile
	pingErr error
}

func (s *stubFiles) GetFile(_ context.Context, id int64) (repo.StoredFile, error) {
	f, ok := s.files[id]
	if !ok {
		return repo.StoredFile{}, repo.ErrNotFound
	}
	return f, nil
}

func (s *stubFiles) Ping(context.Context) error { return s.pingErr }

func newTestServer(t *testing.T, p Pipeline, f FileStore) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(p, f, zaptest.NewLogger(t)).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestWebhookHealthCheck(t *testing.T) {
	srv := newTestServer(t, &stubPipeline{}, &stubFiles{})

	resp, err := http.Get(srv.URL + "/webhook")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestWebhookPost(t *testing.T) {
	pipeline := &stubPipeline{result: webhook.Result{
		Message:   "Contact and Deal created in Bitrix24",
		ContactID: 101,
		DealID:    202,
	}}
	srv := newTestServer(t, pipeline, &stubFiles{})

	payload := `{"full_name_uzbek":"Ali Valiyev","phone_number_uzbek":"901234567","position_uz":"HR Generalist"}`
	resp, err := http.Post(srv.URL+"/webhook", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
	assert.Equal(t, webhook.Text("Ali Valiyev"), pipeline.last.FullName)

	var result webhook.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, int64(101), result.ContactID)
	assert.Equal(t, int64(202), result.DealID)
}

func TestWebhookPostPipelineError(t *testing.T) {
	pipeline := &stubPipeline{err: errors.New("contact upsert: bitrix api error: QUERY_LIMIT_EXCEEDED")}
	srv := newTestServer(t, pipeline, &stubFiles{})

	payload := `{"phone_number_uzbek":"901234567"}`
	resp, err := http.Post(srv.URL+"/webhook", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body struct {
		Message     string          `json:"message"`
		Error       string          `json:"error"`
		RequestBody json.RawMessage `json:"requestBody"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Error, "QUERY_LIMIT_EXCEEDED")
	assert.JSONEq(t, payload, string(body.RequestBody))
}

func TestWebhookPostBadJSON(t *testing.T) {
	srv := newTestServer(t, &stubPipeline{}, &stubFiles{})

	resp, err := http.Post(srv.URL+"/webhook", "application/json", strings.NewReader("{nope"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFileServing(t *testing.T) {
	files := &stubFiles{files: map[int64]repo.StoredFile{
		7: {
			ID:       7,
			Filename: "cv.pdf",
			Mimetype: "application/pdf",
			Size:     8,
			Data:     []byte("%PDF-1.5"),
		},
	}}
	srv := newTestServer(t, &stubPipeline{}, files)

	t.Run("found", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/files/7")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	})

	t.Run("not found", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/files/999")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("bad id", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/files/abc")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestHealthz(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		srv := newTestServer(t, &stubPipeline{}, &stubFiles{})
		resp, err := http.Get(srv.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("db down", func(t *testing.T) {
		srv := newTestServer(t, &stubPipeline{}, &stubFiles{pingErr: errors.New("pool closed")})
		resp, err := http.Get(srv.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}
