// Package names owns the canonical session name grammar. All functions
// are pure; the grammar here is the only source of truth for mapping
// between (project, task) pairs and tmux session names.
//
// Grammar (case-sensitive, no whitespace):
//
//	master: parallel_<project>_task_master
//	child:  parallel_<project>_task_child_<task>
//
// project and task identifiers are [A-Za-z0-9_-]+ and the full name is at
// most MaxNameLen bytes.
package names

import (
	"errors"
	"fmt"
	"strings"
)

// Prefix is the common prefix for all coordinator-managed sessions.
const Prefix = "parallel_"

// MaxNameLen bounds the formatted session name.
const MaxNameLen = 100

const (
	masterSuffix   = "_task_master"
	childSeparator = "_task_child_"
)

// ErrInvalidName reports a project or task identifier that violates the
// grammar, or a formatted name that exceeds MaxNameLen.
var ErrInvalidName = errors.New("invalid session name")

// Role classifies a session by its name.
type Role int

const (
	RoleUnknown Role = iota
	RoleMaster
	RoleChild
)

// String returns the lowercase role name.
func (r Role) String() string {
	switch r {
	case RoleMaster:
		return "master"
	case RoleChild:
		return "child"
	default:
		return "unknown"
	}
}

// Identity is the parsed form of a session name.
type Identity struct {
	Role      Role
	ProjectID string
	TaskID    string // children only
}

// MasterName returns the master session name for a project.
func MasterName(projectID string) (string, error) {
	projectID = strings.TrimSpace(projectID)
	if err := validateID(projectID, "project_id"); err != nil {
		return "", err
	}
	name := Prefix + projectID + masterSuffix
	if len(name) > MaxNameLen {
		return "", fmt.Errorf("%w: %q exceeds %d chars", ErrInvalidName, name, MaxNameLen)
	}
	return name, nil
}

// ChildName returns the child session name for a task within a project.
func ChildName(projectID, taskID string) (string, error) {
	projectID = strings.TrimSpace(projectID)
	taskID = strings.TrimSpace(taskID)
	if err := validateID(projectID, "project_id"); err != nil {
		return "", err
	}
	if err := validateID(taskID, "task_id"); err != nil {
		return "", err
	}
	name := Prefix + projectID + childSeparator + taskID
	if len(name) > MaxNameLen {
		return "", fmt.Errorf("%w: %q exceeds %d chars", ErrInvalidName, name, MaxNameLen)
	}
	return name, nil
}

// Parse maps a session name back to its identity. Names that do not match
// the grammar come back with RoleUnknown; such sessions are never adopted.
func Parse(name string) Identity {
	if len(name) > MaxNameLen || !strings.HasPrefix(name, Prefix) {
		return Identity{Role: RoleUnknown}
	}
	rest := strings.TrimPrefix(name, Prefix)

	if strings.HasSuffix(rest, masterSuffix) {
		project := strings.TrimSuffix(rest, masterSuffix)
		if idOK(project) {
			return Identity{Role: RoleMaster, ProjectID: project}
		}
		return Identity{Role: RoleUnknown}
	}

	// Split on the last separator so a task ID can never swallow one.
	if idx := strings.LastIndex(rest, childSeparator); idx > 0 {
		project := rest[:idx]
		task := rest[idx+len(childSeparator):]
		if idOK(project) && idOK(task) {
			return Identity{Role: RoleChild, ProjectID: project, TaskID: task}
		}
	}

	return Identity{Role: RoleUnknown}
}

// IsProjectSession reports whether name belongs to the given project.
func IsProjectSession(name, projectID string) bool {
	id := Parse(name)
	return id.Role != RoleUnknown && id.ProjectID == projectID
}

// validateID rejects empty identifiers and illegal characters.
func validateID(id, field string) error {
	if id == "" {
		return fmt.Errorf("%w: %s is empty", ErrInvalidName, field)
	}
	if !idOK(id) {
		return fmt.Errorf("%w: %s %q contains illegal characters", ErrInvalidName, field, id)
	}
	return nil
}

// idOK reports whether id matches [A-Za-z0-9_-]+.
func idOK(id string) bool {
	if id == "" {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '-':
		default:
			return false
		}
	}
	return true
}
