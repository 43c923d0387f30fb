package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/darasa/core"
)

func newTestGateway(url string) *HTTPGateway {
	return NewHTTPGateway(core.ClientConfig{EndpointURL: url, RequestTimeout: 5 * time.Second})
}

func TestGatewayFetchAllFlatPayload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "getData", r.URL.Query().Get("action"))
		assert.NotEmpty(t, r.URL.Query().Get("t"))
		_, _ = w.Write([]byte(`{"subjects":[{"id":1,"name":"Math"}],"scores":[{"studentId":"1","taskId":"T1","score":"8"}]}`))
	}))
	defer ts.Close()

	state, err := newTestGateway(ts.URL).FetchAll(context.Background())
	assert.NoError(t, err)
	assert.Len(t, state.Subjects, 1)
	assert.EqualValues(t, "1", state.Subjects[0].ID)
	assert.Len(t, state.Scores, 1)
	assert.EqualValues(t, 8, state.Scores[0].Score)
}

func TestGatewayFetchAllDataEnvelope(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","data":{"subjects":[{"id":"S1","name":"Math"}]}}`))
	}))
	defer ts.Close()

	state, err := newTestGateway(ts.URL).FetchAll(context.Background())
	assert.NoError(t, err)
	assert.Len(t, state.Subjects, 1)
}

func TestGatewayFetchAllHTTPErrorIsUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := newTestGateway(ts.URL).FetchAll(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGatewayFetchAllRefusedConnIsUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // nothing listening anymore

	_, err := newTestGateway(ts.URL).FetchAll(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGatewayFetchAllUnrecognizablePayload(t *testing.T) {
	for _, body := range []string{
		`not json at all`,
		`{"error":"you must log in"}`,
		`{"data":"oops"}`,
	} {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		_, err := newTestGateway(ts.URL).FetchAll(context.Background())
		assert.ErrorIs(t, err, ErrBadPayload, "body %q", body)
		ts.Close()
	}
}

func TestGatewaySend(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer ts.Close()

	resp, err := newTestGateway(ts.URL).Send(context.Background(), []byte(`{"action":"addSubject","id":"S1","name":"Math"}`))
	assert.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
}

func TestGatewaySendErrorReply(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","message":"unknown action"}`))
	}))
	defer ts.Close()

	resp, err := newTestGateway(ts.URL).Send(context.Background(), []byte(`{"action":"nope"}`))
	assert.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "unknown action", resp.Message)
}
