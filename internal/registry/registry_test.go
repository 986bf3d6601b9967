package registry

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/parcoord/parcoord/internal/fault"
	"github.com/parcoord/parcoord/internal/names"
)

func newTestRegistry() *Registry {
	r := New()
	r.SetLogger(func(format string, args ...interface{}) {})
	return r
}

func TestUpsertStatus_NewSession(t *testing.T) {
	r := newTestRegistry()

	if err := r.UpsertStatus("parallel_P_task_master", StatusStarted, 0, ""); err != nil {
		t.Fatalf("UpsertStatus failed: %v", err)
	}
	s, err := r.QueryStatus("parallel_P_task_master")
	if err != nil {
		t.Fatalf("QueryStatus failed: %v", err)
	}
	if s.Role != names.RoleMaster || s.Status != StatusStarted {
		t.Errorf("session = %+v", s)
	}
}

func TestUpsertStatus_ChildMaterializesMaster(t *testing.T) {
	r := newTestRegistry()

	if err := r.UpsertStatus("parallel_P_task_child_T1", StatusStarted, 0, ""); err != nil {
		t.Fatalf("UpsertStatus failed: %v", err)
	}
	if _, err := r.QueryStatus("parallel_P_task_master"); err != nil {
		t.Errorf("master should be auto-created: %v", err)
	}
}

func TestUpsertStatus_Validation(t *testing.T) {
	r := newTestRegistry()

	tests := []struct {
		name     string
		session  string
		status   Status
		progress int
	}{
		{"bad status", "parallel_P_task_master", "Sleeping", 0},
		{"negative progress", "parallel_P_task_master", StatusWorking, -1},
		{"overflow progress", "parallel_P_task_master", StatusWorking, 101},
		{"bad name", "random-session", StatusWorking, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.UpsertStatus(tt.session, tt.status, tt.progress, "")
			if !fault.Is(err, fault.KindInvalidArgument) {
				t.Errorf("err = %v, want InvalidArgument", err)
			}
		})
	}
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusUnknown, StatusStarted, true},
		{StatusUnknown, StatusBlocked, false},
		{StatusStarting, StatusStarted, true},
		{StatusStarting, StatusWorking, false},
		{StatusStarted, StatusWorking, true},
		{StatusStarted, StatusStarted, false},
		{StatusWorking, StatusWorking, true},
		{StatusWorking, StatusCompleted, true},
		{StatusBlocked, StatusWorking, true},
		{StatusBlocked, StatusBlocked, false},
		{StatusError, StatusStarting, true},
		{StatusError, StatusCompleted, false},
		{StatusCompleted, StatusWorking, true},
		{StatusCompleted, StatusError, false},
		{StatusTerminated, StatusWorking, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.ok {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestUpsertStatus_RejectedTransitionPreservesState(t *testing.T) {
	r := newTestRegistry()
	name := "parallel_P_task_master"

	mustUpsert(t, r, name, StatusStarted, 10, "up")
	err := r.UpsertStatus(name, StatusStarted, 50, "again")
	if !fault.Is(err, fault.KindConflict) {
		t.Fatalf("err = %v, want Conflict", err)
	}
	s, _ := r.QueryStatus(name)
	if s.Status != StatusStarted || s.Progress != 10 || s.Details != "up" {
		t.Errorf("state changed on rejected transition: %+v", s)
	}
}

func TestUpsertStatus_TerminatedIsFrozen(t *testing.T) {
	r := newTestRegistry()
	name := "parallel_P_task_master"

	mustUpsert(t, r, name, StatusStarted, 0, "")
	mustUpsert(t, r, name, StatusTerminated, 0, "")
	err := r.UpsertStatus(name, StatusWorking, 0, "")
	if !fault.Is(err, fault.KindConflict) {
		t.Errorf("terminated session accepted a transition: %v", err)
	}
}

func TestStatusRouting(t *testing.T) {
	r := newTestRegistry()
	parent := "parallel_A_task_master"
	child := "parallel_A_task_child_T"

	if err := r.RegisterRelationship(parent, child, "T", "A"); err != nil {
		t.Fatalf("RegisterRelationship failed: %v", err)
	}
	mustUpsert(t, r, child, StatusStarted, 0, "")
	mustUpsert(t, r, child, StatusCompleted, 100, "done")

	msgs := r.DrainUnread(parent)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	m := msgs[0]
	if m.From != child || m.Type != MessageStatusUpdate {
		t.Errorf("message = %+v", m)
	}
	var p StatusUpdatePayload
	if err := json.Unmarshal([]byte(m.Content), &p); err != nil {
		t.Fatalf("content is not JSON: %v", err)
	}
	if p.ChildSession != child || p.Status != "Completed" || p.Progress != 100 || p.Details != "done" {
		t.Errorf("payload = %+v", p)
	}
	if p.Timestamp.IsZero() {
		t.Error("payload timestamp is zero")
	}
}

func TestStatusRouting_UnboundChildFallsBackToMaster(t *testing.T) {
	r := newTestRegistry()
	child := "parallel_A_task_child_T"

	mustUpsert(t, r, child, StatusStarted, 0, "")
	mustUpsert(t, r, child, StatusBlocked, 40, "stuck")

	msgs := r.DrainUnread("parallel_A_task_master")
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
}

func TestRegisterRelationship_Idempotent(t *testing.T) {
	r := newTestRegistry()
	parent := "parallel_P_task_master"
	child := "parallel_P_task_child_T"

	for i := 0; i < 3; i++ {
		if err := r.RegisterRelationship(parent, child, "T", "P"); err != nil {
			t.Fatalf("attempt %d failed: %v", i, err)
		}
	}
	children, err := r.ListChildren(parent)
	if err != nil {
		t.Fatalf("ListChildren failed: %v", err)
	}
	if len(children) != 1 {
		t.Errorf("got %d children, want 1", len(children))
	}
}

func TestRegisterRelationship_Conflict(t *testing.T) {
	r := newTestRegistry()
	child := "parallel_P_task_child_T"

	if err := r.RegisterRelationship("parallel_P_task_master", child, "T", "P"); err != nil {
		t.Fatalf("first bind failed: %v", err)
	}
	// The same child cannot be bound to a second parent even if the
	// tuple otherwise validates.
	err := r.RegisterRelationship("parallel_P_task_master", child, "T", "P")
	if err != nil {
		t.Fatalf("identical rebind should be a no-op: %v", err)
	}
}

func TestRegisterRelationship_Validation(t *testing.T) {
	r := newTestRegistry()

	tests := []struct {
		name                              string
		parent, child, taskID, projectID string
	}{
		{"parent not master", "parallel_P_task_child_X", "parallel_P_task_child_T", "T", "P"},
		{"child not child", "parallel_P_task_master", "parallel_P_task_master", "T", "P"},
		{"project mismatch", "parallel_P_task_master", "parallel_Q_task_child_T", "T", "P"},
		{"task mismatch", "parallel_P_task_master", "parallel_P_task_child_T", "U", "P"},
		{"garbage parent", "not-a-session", "parallel_P_task_child_T", "T", "P"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.RegisterRelationship(tt.parent, tt.child, tt.taskID, tt.projectID)
			if !fault.Is(err, fault.KindInvalidArgument) {
				t.Errorf("err = %v, want InvalidArgument", err)
			}
		})
	}
}

func TestQueueCap_DropsOldest(t *testing.T) {
	r := newTestRegistry()
	r.SetQueueCap(3)

	for i := 0; i < 5; i++ {
		_, err := r.EnqueueMessage("a", "b", MessageInstruction, fmt.Sprintf("m%d", i))
		if err != nil {
			t.Fatalf("enqueue %d failed: %v", i, err)
		}
	}
	msgs := r.DrainUnread("b")
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	for i, want := range []string{"m2", "m3", "m4"} {
		if msgs[i].Content != want {
			t.Errorf("msgs[%d] = %q, want %q", i, msgs[i].Content, want)
		}
	}
}

func TestEnqueueMessage_InvalidType(t *testing.T) {
	r := newTestRegistry()
	if _, err := r.EnqueueMessage("a", "b", "Telegram", "x"); !fault.Is(err, fault.KindInvalidArgument) {
		t.Errorf("err = %v, want InvalidArgument", err)
	}
}

func TestDrainUnread_MarksRead(t *testing.T) {
	r := newTestRegistry()
	r.EnqueueMessage("a", "b", MessageQuery, "hi")

	if got := len(r.DrainUnread("b")); got != 1 {
		t.Fatalf("first drain = %d, want 1", got)
	}
	if got := len(r.DrainUnread("b")); got != 0 {
		t.Errorf("second drain = %d, want 0", got)
	}
	// Read messages stay until swept.
	if got := len(r.Snapshot().Messages["b"]); got != 1 {
		t.Errorf("queue length after drain = %d, want 1", got)
	}
}

func TestSweep(t *testing.T) {
	r := newTestRegistry()
	r.EnqueueMessage("a", "b", MessageQuery, "old")

	if dropped := r.Sweep(time.Now()); dropped != 0 {
		t.Fatalf("fresh message swept: %d", dropped)
	}
	if dropped := r.Sweep(time.Now().Add(25 * time.Hour)); dropped != 1 {
		t.Fatalf("dropped = %d, want 1", dropped)
	}
	if got := len(r.Snapshot().Messages); got != 0 {
		t.Errorf("queues remaining = %d, want 0", got)
	}
}

func TestHealthScore(t *testing.T) {
	now := time.Now()
	tests := []struct {
		status Status
		age    time.Duration
		want   float64
	}{
		{StatusWorking, 0, 1.0},
		{StatusCompleted, 0, 1.0},
		{StatusStarted, 0, 0.8},
		{StatusUnknown, 0, 0.5},
		{StatusBlocked, 0, 0.3},
		{StatusError, 0, 0.1},
		{StatusTerminated, 0, 0},
		{StatusWorking, 30 * time.Minute, 0.6},
		{StatusWorking, time.Hour, 0.2},
		{StatusWorking, 5 * time.Hour, 0.2},
	}
	for _, tt := range tests {
		s := Session{Status: tt.status, LastUpdate: now.Add(-tt.age)}
		got := s.HealthScore(now)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("HealthScore(%s, age=%s) = %v, want %v", tt.status, tt.age, got, tt.want)
		}
	}
}

func TestListChildren_HealthAndCopies(t *testing.T) {
	r := newTestRegistry()
	parent := "parallel_P_task_master"
	child := "parallel_P_task_child_T"

	r.RegisterRelationship(parent, child, "T", "P")
	mustUpsert(t, r, child, StatusWorking, 50, "going")

	children, err := r.ListChildren(parent)
	if err != nil {
		t.Fatalf("ListChildren failed: %v", err)
	}
	if len(children) != 1 {
		t.Fatalf("got %d children, want 1", len(children))
	}
	if children[0].HealthScore < 0.99 {
		t.Errorf("fresh Working child health = %v", children[0].HealthScore)
	}

	// Mutating the copy must not touch the store.
	children[0].Details = "tampered"
	s, _ := r.QueryStatus(child)
	if s.Details != "going" {
		t.Error("caller mutation leaked into registry")
	}
}

func TestListChildren_ParentNotFound(t *testing.T) {
	r := newTestRegistry()
	if _, err := r.ListChildren("parallel_NOPE_task_master"); !fault.Is(err, fault.KindNotFound) {
		t.Errorf("err = %v, want NotFound", err)
	}
}

func TestAdoptStub(t *testing.T) {
	r := newTestRegistry()

	if !r.AdoptStub("parallel_P_task_child_T2") {
		t.Fatal("adoption refused")
	}
	if r.AdoptStub("parallel_P_task_child_T2") {
		t.Error("double adoption")
	}
	if r.AdoptStub("unrelated-session") {
		t.Error("adopted a name outside the grammar")
	}

	s, err := r.QueryStatus("parallel_P_task_child_T2")
	if err != nil {
		t.Fatalf("QueryStatus failed: %v", err)
	}
	if s.Role != names.RoleChild || s.ProjectID != "P" || s.TaskID != "T2" {
		t.Errorf("stub = %+v", s)
	}
	if s.Status != StatusUnknown || !s.TmuxPresent {
		t.Errorf("stub should be Unknown and present, got %+v", s)
	}
}

func TestObserveLive_EvictsAfterTwoMisses(t *testing.T) {
	r := newTestRegistry()
	name := "parallel_P_task_child_T3"
	r.RegisterRelationship("parallel_P_task_master", name, "T3", "P")

	if evicted := r.ObserveLive([]string{"parallel_P_task_master"}); len(evicted) != 0 {
		t.Fatalf("evicted on first miss: %v", evicted)
	}
	s, _ := r.QueryStatus(name)
	if s.TmuxPresent {
		t.Error("absent session still marked present")
	}

	evicted := r.ObserveLive([]string{"parallel_P_task_master"})
	if len(evicted) != 1 || evicted[0] != name {
		t.Fatalf("evicted = %v, want [%s]", evicted, name)
	}
	if _, err := r.QueryStatus(name); !fault.Is(err, fault.KindNotFound) {
		t.Error("evicted session still queryable")
	}
	if _, ok := r.Snapshot().Relationships[name]; ok {
		t.Error("relationship survived eviction")
	}
}

func TestObserveLive_PresenceResetsMisses(t *testing.T) {
	r := newTestRegistry()
	name := "parallel_P_task_master"
	mustUpsert(t, r, name, StatusStarted, 0, "")

	r.ObserveLive(nil)           // miss 1
	r.ObserveLive([]string{name}) // back
	if evicted := r.ObserveLive(nil); len(evicted) != 0 {
		t.Errorf("evicted after reset: %v", evicted)
	}
}

func TestRemove_MasterCascades(t *testing.T) {
	r := newTestRegistry()
	parent := "parallel_P_task_master"
	c1 := "parallel_P_task_child_T1"
	c2 := "parallel_P_task_child_T2"
	other := "parallel_Q_task_master"

	r.RegisterRelationship(parent, c1, "T1", "P")
	r.RegisterRelationship(parent, c2, "T2", "P")
	mustUpsert(t, r, other, StatusStarted, 0, "")

	removed := r.Remove(parent)
	if len(removed) != 3 {
		t.Fatalf("removed = %v, want master plus both children", removed)
	}
	snap := r.Snapshot()
	if len(snap.Sessions) != 1 {
		t.Errorf("sessions remaining = %v", snap.Sessions)
	}
	if _, ok := snap.Sessions[other]; !ok {
		t.Error("unrelated project removed")
	}
	if len(snap.Relationships) != 0 {
		t.Errorf("relationships remaining = %v", snap.Relationships)
	}
}

func TestRemove_AbsentIsNoop(t *testing.T) {
	r := newTestRegistry()
	if removed := r.Remove("parallel_P_task_master"); removed != nil {
		t.Errorf("removed = %v, want nil", removed)
	}
}

func mustUpsert(t *testing.T, r *Registry, name string, status Status, progress int, details string) {
	t.Helper()
	if err := r.UpsertStatus(name, status, progress, details); err != nil {
		t.Fatalf("UpsertStatus(%s, %s): %v", name, status, err)
	}
}
