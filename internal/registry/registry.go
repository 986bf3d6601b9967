// Package registry is the in-memory authoritative store for sessions,
// relationships, and message queues. It owns all three maps; every other
// component mutates them only through the operations here. Callers always
// receive value copies, never references into the store.
package registry

import (
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parcoord/parcoord/internal/constants"
	"github.com/parcoord/parcoord/internal/fault"
	"github.com/parcoord/parcoord/internal/names"
)

// Session is a tracked tmux session.
type Session struct {
	Name         string
	Role         names.Role
	ProjectID    string
	TaskID       string // children only
	Status       Status
	Progress     int
	Details      string
	LastUpdate   time.Time
	WorktreePath string // children only
	Branch       string // children only
	TmuxPresent  bool
}

// HealthScore computes the session's health in [0,1] as of now.
func (s *Session) HealthScore(now time.Time) float64 {
	return healthScore(s.Status, s.LastUpdate, now)
}

// ChildInfo is a child session plus its computed health.
type ChildInfo struct {
	Session
	HealthScore float64
}

// Relationship binds a child session to its parent master.
type Relationship struct {
	ChildSession  string
	ParentSession string
	TaskID        string
	ProjectID     string
	CreatedAt     time.Time
	Active        bool
}

// MessageType classifies inter-session messages.
type MessageType string

const (
	MessageStatusUpdate  MessageType = "StatusUpdate"
	MessageTaskCompleted MessageType = "TaskCompleted"
	MessageInstruction   MessageType = "Instruction"
	MessageQuery         MessageType = "Query"
	MessageResponse      MessageType = "Response"
	MessageError         MessageType = "Error"
)

// Valid reports whether t is a recognized message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageStatusUpdate, MessageTaskCompleted, MessageInstruction,
		MessageQuery, MessageResponse, MessageError:
		return true
	}
	return false
}

// Message is a queued inter-session message. From and To are session
// names but are not required to exist in the registry.
type Message struct {
	ID        string
	From      string
	To        string
	Type      MessageType
	Content   string
	CreatedAt time.Time
	Read      bool
}

// StatusUpdatePayload is the JSON body of auto-generated StatusUpdate
// messages routed from a child to its parent.
type StatusUpdatePayload struct {
	ChildSession string    `json:"child_session"`
	Status       string    `json:"status"`
	Progress     int       `json:"progress"`
	Details      string    `json:"details"`
	Timestamp    time.Time `json:"timestamp"`
}

// entry is the internal session record. Reconciliation bookkeeping lives
// here so it never leaks into copies handed to callers.
type entry struct {
	Session
	missedTicks int
}

// Registry holds all coordinator state behind a single lock.
type Registry struct {
	mu            sync.RWMutex
	sessions      map[string]*entry
	relationships map[string]*Relationship // keyed by child session
	messages      map[string][]*Message    // keyed by destination

	queueCap int
	maxAge   time.Duration

	logf func(format string, args ...interface{})
	now  func() time.Time
}

// New creates an empty registry with default limits.
func New() *Registry {
	return &Registry{
		sessions:      make(map[string]*entry),
		relationships: make(map[string]*Relationship),
		messages:      make(map[string][]*Message),
		queueCap:      constants.DefaultMessageQueueCap,
		maxAge:        constants.DefaultMessageMaxAge,
		logf:          log.Printf,
		now:           time.Now,
	}
}

// SetLogger overrides the warning logger.
func (r *Registry) SetLogger(logf func(format string, args ...interface{})) {
	if logf != nil {
		r.logf = logf
	}
}

// SetQueueCap overrides the per-session message queue cap.
func (r *Registry) SetQueueCap(n int) {
	if n > 0 {
		r.queueCap = n
	}
}

// SetMaxMessageAge overrides the sweep age threshold.
func (r *Registry) SetMaxMessageAge(d time.Duration) {
	if d > 0 {
		r.maxAge = d
	}
}

// UpsertStatus records a status report for a session, creating the record
// if it does not exist. Illegal transitions are rejected and the current
// status is preserved. When a child reaches Completed, Blocked, or Error,
// a StatusUpdate message is enqueued to its parent.
func (r *Registry) UpsertStatus(name string, status Status, progress int, details string) error {
	if !status.Valid() {
		return fault.New(fault.KindInvalidArgument, "unknown status %q", status)
	}
	if progress < 0 || progress > 100 {
		return fault.New(fault.KindInvalidArgument, "progress %d out of range [0,100]", progress)
	}
	id := names.Parse(name)
	if id.Role == names.RoleUnknown {
		return fault.New(fault.KindInvalidArgument, "session name %q does not match grammar", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[name]
	if !ok {
		e = r.materializeLocked(id, name)
	}
	if e.Status == StatusTerminated {
		return fault.New(fault.KindConflict, "session %q is terminated and frozen", name)
	}
	if !CanTransition(e.Status, status) {
		r.logf("registry: rejected status transition %s -> %s for %s", e.Status, status, name)
		return fault.New(fault.KindConflict, "illegal status transition %s -> %s", e.Status, status)
	}

	e.Status = status
	e.Progress = progress
	e.Details = details
	e.LastUpdate = r.now()

	if id.Role == names.RoleChild {
		switch status {
		case StatusCompleted, StatusBlocked, StatusError:
			r.notifyParentLocked(e)
		}
	}
	return nil
}

// notifyParentLocked routes a StatusUpdate to the child's parent: the
// bound relationship if one exists, the project master name otherwise.
func (r *Registry) notifyParentLocked(e *entry) {
	parent := ""
	if rel, ok := r.relationships[e.Name]; ok && rel.Active {
		parent = rel.ParentSession
	} else if mn, err := names.MasterName(e.ProjectID); err == nil {
		parent = mn
	}
	if parent == "" {
		return
	}

	body, err := json.Marshal(StatusUpdatePayload{
		ChildSession: e.Name,
		Status:       string(e.Status),
		Progress:     e.Progress,
		Details:      e.Details,
		Timestamp:    e.LastUpdate,
	})
	if err != nil {
		r.logf("registry: encode status update for %s: %v", e.Name, err)
		return
	}
	r.appendMessageLocked(&Message{
		ID:        uuid.NewString(),
		From:      e.Name,
		To:        parent,
		Type:      MessageStatusUpdate,
		Content:   string(body),
		CreatedAt: r.now(),
	})
}

// materializeLocked inserts a fresh record for a parsed name. A child
// record implies its project master, which is auto-created if absent.
func (r *Registry) materializeLocked(id names.Identity, name string) *entry {
	e := &entry{Session: Session{
		Name:       name,
		Role:       id.Role,
		ProjectID:  id.ProjectID,
		TaskID:     id.TaskID,
		Status:     StatusUnknown,
		LastUpdate: r.now(),
	}}
	r.sessions[name] = e

	if id.Role == names.RoleChild {
		if mn, err := names.MasterName(id.ProjectID); err == nil {
			if _, ok := r.sessions[mn]; !ok {
				r.sessions[mn] = &entry{Session: Session{
					Name:       mn,
					Role:       names.RoleMaster,
					ProjectID:  id.ProjectID,
					Status:     StatusUnknown,
					LastUpdate: r.now(),
				}}
			}
		}
	}
	return e
}

// RegisterRelationship binds a child to a parent. Repeating an identical
// binding succeeds without duplication; binding an already-bound child to
// a different parent is a conflict.
func (r *Registry) RegisterRelationship(parent, child, taskID, projectID string) error {
	pid := names.Parse(parent)
	cid := names.Parse(child)
	if pid.Role != names.RoleMaster {
		return fault.New(fault.KindInvalidArgument, "parent %q is not a master session name", parent)
	}
	if cid.Role != names.RoleChild {
		return fault.New(fault.KindInvalidArgument, "child %q is not a child session name", child)
	}
	if pid.ProjectID != projectID || cid.ProjectID != projectID {
		return fault.New(fault.KindInvalidArgument,
			"project mismatch: parent=%q child=%q want %q", pid.ProjectID, cid.ProjectID, projectID)
	}
	if cid.TaskID != taskID {
		return fault.New(fault.KindInvalidArgument,
			"task mismatch: child carries %q, relationship names %q", cid.TaskID, taskID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if rel, ok := r.relationships[child]; ok && rel.Active {
		if rel.ParentSession == parent && rel.TaskID == taskID && rel.ProjectID == projectID {
			return nil
		}
		return fault.New(fault.KindConflict, "child %q already bound to %q", child, rel.ParentSession)
	}

	if _, ok := r.sessions[parent]; !ok {
		r.materializeLocked(pid, parent)
	}
	if _, ok := r.sessions[child]; !ok {
		r.materializeLocked(cid, child)
	}

	r.relationships[child] = &Relationship{
		ChildSession:  child,
		ParentSession: parent,
		TaskID:        taskID,
		ProjectID:     projectID,
		CreatedAt:     r.now(),
		Active:        true,
	}
	return nil
}

// SetWorkspace records the worktree path and branch on a child record.
func (r *Registry) SetWorkspace(name, worktreePath, branch string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[name]
	if !ok {
		return fault.New(fault.KindNotFound, "session %q not found", name)
	}
	e.WorktreePath = worktreePath
	e.Branch = branch
	return nil
}

// ListChildren returns copies of all sessions bound to the parent, with
// health scores computed as of now.
func (r *Registry) ListChildren(parent string) ([]ChildInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.sessions[parent]; !ok {
		return nil, fault.New(fault.KindNotFound, "parent %q not found", parent)
	}

	now := r.now()
	var children []ChildInfo
	for child, rel := range r.relationships {
		if !rel.Active || rel.ParentSession != parent {
			continue
		}
		e, ok := r.sessions[child]
		if !ok {
			continue
		}
		children = append(children, ChildInfo{
			Session:     e.Session,
			HealthScore: e.HealthScore(now),
		})
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })
	return children, nil
}

// QueryStatus returns a copy of one session.
func (r *Registry) QueryStatus(name string) (Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[name]
	if !ok {
		return Session{}, fault.New(fault.KindNotFound, "session %q not found", name)
	}
	return e.Session, nil
}

// QueryAll returns copies of every session keyed by name.
func (r *Registry) QueryAll() map[string]Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Session, len(r.sessions))
	for name, e := range r.sessions {
		out[name] = e.Session
	}
	return out
}

// EnqueueMessage appends a message to the destination queue and returns
// its ID. Over-cap queues drop their oldest entry.
func (r *Registry) EnqueueMessage(from, to string, typ MessageType, content string) (string, error) {
	if !typ.Valid() {
		return "", fault.New(fault.KindInvalidArgument, "unknown message type %q", typ)
	}
	if to == "" {
		return "", fault.New(fault.KindInvalidArgument, "empty destination")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m := &Message{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Type:      typ,
		Content:   content,
		CreatedAt: r.now(),
	}
	r.appendMessageLocked(m)
	return m.ID, nil
}

func (r *Registry) appendMessageLocked(m *Message) {
	q := append(r.messages[m.To], m)
	if len(q) > r.queueCap {
		q = q[len(q)-r.queueCap:]
	}
	r.messages[m.To] = q
}

// DrainUnread returns copies of all unread messages for a session in
// arrival order and marks them read. Read messages stay queued until the
// sweep removes them.
func (r *Registry) DrainUnread(name string) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Message
	for _, m := range r.messages[name] {
		if m.Read {
			continue
		}
		m.Read = true
		out = append(out, *m)
	}
	return out
}

// Sweep removes messages older than the max age and returns how many
// were dropped.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-r.maxAge)
	dropped := 0
	for to, q := range r.messages {
		kept := q[:0]
		for _, m := range q {
			if m.CreatedAt.Before(cutoff) {
				dropped++
				continue
			}
			kept = append(kept, m)
		}
		if len(kept) == 0 {
			delete(r.messages, to)
		} else {
			r.messages[to] = kept
		}
	}
	return dropped
}

// MarkTerminated freezes a session's record. Returns the frozen copy and
// whether the record existed.
func (r *Registry) MarkTerminated(name string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[name]
	if !ok {
		return Session{}, false
	}
	if e.Status != StatusTerminated {
		e.Status = StatusTerminated
		e.LastUpdate = r.now()
	}
	return e.Session, true
}

// Remove deletes a session and its relationship. Removing a master also
// removes its children's records and relationships; their tmux sessions
// are untouched. Returns the names of all removed sessions.
func (r *Registry) Remove(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[name]
	if !ok {
		return nil
	}

	removed := []string{name}
	delete(r.sessions, name)
	delete(r.relationships, name)

	if e.Role == names.RoleMaster {
		for child, rel := range r.relationships {
			if rel.ParentSession != name {
				continue
			}
			delete(r.relationships, child)
			if _, ok := r.sessions[child]; ok {
				delete(r.sessions, child)
				removed = append(removed, child)
			}
		}
	}
	return removed
}

// AdoptStub inserts an Unknown-status record for a live session that the
// registry has never seen. Names outside the grammar are never adopted.
// Returns true if a record was inserted.
func (r *Registry) AdoptStub(name string) bool {
	id := names.Parse(name)
	if id.Role == names.RoleUnknown {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[name]; ok {
		return false
	}
	e := r.materializeLocked(id, name)
	e.TmuxPresent = true
	return true
}

// ObserveLive reconciles presence flags against the set of live tmux
// session names. Sessions absent from the live set accumulate misses and
// are evicted, relationship included, once the miss threshold is hit.
// Returns the evicted names.
func (r *Registry) ObserveLive(live []string) []string {
	liveSet := make(map[string]bool, len(live))
	for _, name := range live {
		liveSet[name] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []string
	for name, e := range r.sessions {
		if liveSet[name] {
			e.TmuxPresent = true
			e.missedTicks = 0
			continue
		}
		e.TmuxPresent = false
		e.missedTicks++
		if e.missedTicks >= constants.EvictAfterMisses {
			delete(r.sessions, name)
			delete(r.relationships, name)
			evicted = append(evicted, name)
		}
	}
	sort.Strings(evicted)
	return evicted
}

// Snapshot is a consistent copy of the full registry state.
type Snapshot struct {
	Sessions      map[string]Session
	Relationships map[string]Relationship
	Messages      map[string][]Message
}

// Snapshot returns a deep copy of everything, for diagnostics.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		Sessions:      make(map[string]Session, len(r.sessions)),
		Relationships: make(map[string]Relationship, len(r.relationships)),
		Messages:      make(map[string][]Message, len(r.messages)),
	}
	for name, e := range r.sessions {
		snap.Sessions[name] = e.Session
	}
	for child, rel := range r.relationships {
		snap.Relationships[child] = *rel
	}
	for to, q := range r.messages {
		msgs := make([]Message, len(q))
		for i, m := range q {
			msgs[i] = *m
		}
		snap.Messages[to] = msgs
	}
	return snap
}
