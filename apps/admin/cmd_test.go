package main

import (
	"context"
	"testing"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
	synceng "github.com/trezcool/darasa/core/sync"
	testutil "github.com/trezcool/darasa/tests"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// scriptedGateway replies success to everything and remembers the last login.
type scriptedGateway struct {
	loginOK   bool
	sendCalls int
}

func (gw *scriptedGateway) FetchAll(ctx context.Context) (classroom.State, error) {
	return classroom.DefaultState(), nil
}

func (gw *scriptedGateway) Send(ctx context.Context, payload []byte) (synceng.Response, error) {
	gw.sendCalls++
	if gw.loginOK {
		return synceng.Response{Status: "success", Token: "tok"}, nil
	}
	return synceng.Response{Status: "success"}, nil
}

func setup(t *testing.T, gw synceng.Gateway) (*commandLine, *classroom.Store, *synceng.Queue) {
	t.Helper()
	store, kv := testutil.NewStore(t)
	queue := synceng.NewQueue(kv, "sync_queue")
	if err := queue.Load(); err != nil {
		t.Fatalf("queue.Load() failed: %v", err)
	}
	conf := core.ClientConfig{MaxPushAttempts: 3, SessionKey: "admin_session"}
	engine := synceng.NewEngine(store, gw, queue, kv, conf, nopLogger{})
	return &commandLine{engine: engine, store: store, queue: queue}, store, queue
}

type cliTest struct {
	name    string
	args    []string // without program name
	wantErr error
	pwd     string
}

func Test_commandLine_run(t *testing.T) {
	gw := &scriptedGateway{loginOK: true}
	cli, store, queue := setup(t, gw)

	testutil.MustApply(t, store, classroom.AddSubject{ID: "S1", Name: "Math"})
	if err := queue.Enqueue(testutil.MustMarshalAction(t, classroom.AddScore{StudentID: "1", TaskID: "T1", Score: 8})); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "login: no username", args: []string{"login"}, wantErr: errHelp},
		{name: "login: empty password", args: []string{"login", "-username", "admin"}, wantErr: errHelp},
		{name: "login", args: []string{"login", "-username", "admin"}, pwd: "s3cret"},
		{name: "sync", args: []string{"sync"}},
		{name: "drain", args: []string{"drain"}},
		{name: "queue", args: []string{"queue"}},
		{name: "status", args: []string{"status"}},
		{name: "logout", args: []string{"logout"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			return []byte(tt.pwd), nil
		}

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	// drain pushed the queued action
	if queue.Len() != 0 {
		t.Errorf("queue.Len() = %d, want 0", queue.Len())
	}
	// logout wiped the local snapshot
	if n := len(cli.store.State().Subjects); n != 0 {
		t.Errorf("subjects after logout = %d, want 0", n)
	}
	if cli.engine.LoggedIn() {
		t.Error("still logged in after logout")
	}
}
