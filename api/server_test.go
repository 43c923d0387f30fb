package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/storage/kvstore"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

func newTestServer(t *testing.T) (Server, *classroom.Store) {
	t.Helper()
	store := classroom.NewStore(kvstore.NewInMemKV(), "server_data")
	store.Load()

	conf := &core.Config{
		TestMode: true,
		Server: core.ServerConfig{
			AdminUsername:        "admin",
			SecretKey:            "test-secret",
			TokenExpirationDelta: time.Hour,
		},
	}
	return NewServer(&Options{Conf: conf, Store: store, Log: nopLogger{}, DisableReqLogs: true}), store
}

func doJSON(t *testing.T, s Server, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var reply map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	}
	return rec, reply
}

func TestPullWithoutActionIsABanner(t *testing.T) {
	s, _ := newTestServer(t)
	rec, _ := doJSON(t, s, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "endpoint emulator")
}

func TestPullGetData(t *testing.T) {
	s, store := newTestServer(t)
	assert.NoError(t, store.Apply(classroom.AddSubject{ID: "S1", Name: "Math"}))

	rec, reply := doJSON(t, s, http.MethodGet, "/?action=getData", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	subjects, ok := reply["subjects"].([]interface{})
	assert.True(t, ok)
	assert.Len(t, subjects, 1)
}

func TestPushAppliesAction(t *testing.T) {
	s, store := newTestServer(t)

	rec, reply := doJSON(t, s, http.MethodPost, "/",
		`{"action":"addScore","studentId":"1","taskId":"T1","score":"8"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", reply["status"])

	state := store.State()
	assert.Len(t, state.Scores, 1)
	assert.Equal(t, classroom.Number(8), state.Scores[0].Score)
}

func TestPushUnknownActionRepliesError(t *testing.T) {
	s, _ := newTestServer(t)

	rec, reply := doJSON(t, s, http.MethodPost, "/", `{"action":"frobnicate"}`)
	assert.Equal(t, http.StatusOK, rec.Code) // contract: failures travel in the body
	assert.Equal(t, "error", reply["status"])
}

func TestPushInvalidActionRepliesError(t *testing.T) {
	s, store := newTestServer(t)

	rec, reply := doJSON(t, s, http.MethodPost, "/", `{"action":"addSubject","name":"no id"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "error", reply["status"])
	assert.Empty(t, store.State().Subjects)
}

func TestLogin(t *testing.T) {
	s, _ := newTestServer(t)

	// DEV fallback credentials are admin/admin
	rec, reply := doJSON(t, s, http.MethodPost, "/",
		`{"action":"login","username":"admin","password":"admin"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", reply["status"])
	token, _ := reply["token"].(string)
	assert.NotEmpty(t, token)

	_, reply = doJSON(t, s, http.MethodPost, "/",
		`{"action":"login","username":"admin","password":"wrong"}`)
	assert.Equal(t, "error", reply["status"])

	_, reply = doJSON(t, s, http.MethodPost, "/",
		`{"action":"login","username":"someone","password":"admin"}`)
	assert.Equal(t, "error", reply["status"])
}
