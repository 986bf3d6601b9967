package tmux

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/parcoord/parcoord/internal/execx"
)

// fakeRunner records invocations and plays back scripted results.
type fakeRunner struct {
	calls   [][]string
	results []execx.Result
	errs    []error
}

func (f *fakeRunner) Run(argv []string, timeout time.Duration) (execx.Result, error) {
	f.calls = append(f.calls, argv)
	i := len(f.calls) - 1
	var res execx.Result
	var err error
	if i < len(f.results) {
		res = f.results[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return res, err
}

func TestNewSession_Argv(t *testing.T) {
	f := &fakeRunner{results: []execx.Result{{}}}
	tm := New(f)

	if err := tm.NewSession("parallel_P_task_master", "/work"); err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	want := []string{"tmux", "new-session", "-d", "-s", "parallel_P_task_master", "-c", "/work"}
	if got := strings.Join(f.calls[0], " "); got != strings.Join(want, " ") {
		t.Errorf("argv = %q, want %q", got, strings.Join(want, " "))
	}
}

func TestHasSession_ExactMatch(t *testing.T) {
	f := &fakeRunner{results: []execx.Result{{}}}
	tm := New(f)

	exists, err := tm.HasSession("parallel_P_task_master")
	if err != nil || !exists {
		t.Fatalf("HasSession = %v, %v; want true, nil", exists, err)
	}
	argv := f.calls[0]
	if argv[len(argv)-1] != "=parallel_P_task_master" {
		t.Errorf("target = %q, want exact-match prefix", argv[len(argv)-1])
	}
}

func TestHasSession_NotFound(t *testing.T) {
	f := &fakeRunner{results: []execx.Result{{ExitCode: 1, Stderr: "can't find session: x"}}}
	tm := New(f)

	exists, err := tm.HasSession("x")
	if err != nil {
		t.Fatalf("missing session should not error: %v", err)
	}
	if exists {
		t.Error("expected exists = false")
	}
}

func TestListSessions_NoServer(t *testing.T) {
	f := &fakeRunner{results: []execx.Result{{ExitCode: 1, Stderr: "no server running on /tmp/tmux-0/default"}}}
	tm := New(f)

	sessions, err := tm.ListSessions()
	if err != nil {
		t.Fatalf("no server should mean no sessions, got %v", err)
	}
	if sessions != nil {
		t.Errorf("sessions = %v, want nil", sessions)
	}
}

func TestListSessions(t *testing.T) {
	f := &fakeRunner{results: []execx.Result{{Stdout: "a\nb\nc\n"}}}
	tm := New(f)

	sessions, err := tm.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 3 || sessions[0] != "a" || sessions[2] != "c" {
		t.Errorf("sessions = %v", sessions)
	}
}

func TestWrapError_DuplicateSession(t *testing.T) {
	f := &fakeRunner{results: []execx.Result{{ExitCode: 1, Stderr: "duplicate session: p"}}}
	tm := New(f)

	err := tm.NewSession("p", "")
	if !errors.Is(err, ErrSessionExists) {
		t.Errorf("expected ErrSessionExists, got %v", err)
	}
}

func TestSendKeysLiteral_Argv(t *testing.T) {
	f := &fakeRunner{results: []execx.Result{{}}}
	tm := New(f)

	if err := tm.SendKeysLiteral("s", "hello world"); err != nil {
		t.Fatalf("SendKeysLiteral failed: %v", err)
	}
	argv := f.calls[0]
	joined := strings.Join(argv, " ")
	if !strings.Contains(joined, "-l hello world") {
		t.Errorf("expected literal flag before content, got %q", joined)
	}
	if strings.Contains(joined, "Enter") {
		t.Error("content phase must not send Enter")
	}
}

func TestSendEnter_Argv(t *testing.T) {
	f := &fakeRunner{results: []execx.Result{{}}}
	tm := New(f)

	if err := tm.SendEnter("s"); err != nil {
		t.Fatalf("SendEnter failed: %v", err)
	}
	argv := f.calls[0]
	if argv[len(argv)-1] != "Enter" {
		t.Errorf("expected trailing Enter key, got %v", argv)
	}
}

func TestTarget(t *testing.T) {
	w, p := 1, 2
	tests := []struct {
		window, pane *int
		want         string
	}{
		{nil, nil, "s"},
		{&w, nil, "s:1"},
		{&w, &p, "s:1.2"},
	}
	for _, tt := range tests {
		if got := Target("s", tt.window, tt.pane); got != tt.want {
			t.Errorf("Target = %q, want %q", got, tt.want)
		}
	}
}

func TestRun_ExecutorError(t *testing.T) {
	f := &fakeRunner{errs: []error{execx.ErrTimeout}}
	tm := New(f)

	err := tm.KillSession("s")
	if !errors.Is(err, execx.ErrTimeout) {
		t.Errorf("expected wrapped ErrTimeout, got %v", err)
	}
}
