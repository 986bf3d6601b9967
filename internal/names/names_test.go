package names

import (
	"errors"
	"strings"
	"testing"
)

func TestMasterName(t *testing.T) {
	got, err := MasterName("DEMO")
	if err != nil {
		t.Fatalf("MasterName failed: %v", err)
	}
	want := "parallel_DEMO_task_master"
	if got != want {
		t.Errorf("MasterName(DEMO) = %q, want %q", got, want)
	}
}

func TestChildName(t *testing.T) {
	got, err := ChildName("DEMO", "T1")
	if err != nil {
		t.Fatalf("ChildName failed: %v", err)
	}
	want := "parallel_DEMO_task_child_T1"
	if got != want {
		t.Errorf("ChildName(DEMO, T1) = %q, want %q", got, want)
	}
}

func TestNameValidation(t *testing.T) {
	tests := []struct {
		name      string
		projectID string
		taskID    string
	}{
		{"empty project", "", "T1"},
		{"whitespace project", "   ", "T1"},
		{"colon in project", "a:b", "T1"},
		{"slash in project", "a/b", "T1"},
		{"space in project", "a b", "T1"},
		{"empty task", "P", ""},
		{"control char in task", "P", "t\x01"},
		{"unicode task", "P", "tâche"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ChildName(tt.projectID, tt.taskID); !errors.Is(err, ErrInvalidName) {
				t.Errorf("ChildName(%q, %q) err = %v, want ErrInvalidName", tt.projectID, tt.taskID, err)
			}
		})
	}
}

func TestNameLengthLimit(t *testing.T) {
	long := strings.Repeat("x", 120)
	if _, err := MasterName(long); !errors.Is(err, ErrInvalidName) {
		t.Errorf("expected ErrInvalidName for overlong project, got %v", err)
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		projectID string
		taskID    string
	}{
		{"DEMO", ""},
		{"DEMO", "T1"},
		{"my-project_2", ""},
		{"my-project_2", "fix_bug-42"},
		{"a_task_child_b", "t"}, // underscore-heavy project survives
	}
	for _, tt := range tests {
		if tt.taskID == "" {
			name, err := MasterName(tt.projectID)
			if err != nil {
				t.Fatalf("MasterName(%q): %v", tt.projectID, err)
			}
			id := Parse(name)
			if id.Role != RoleMaster || id.ProjectID != tt.projectID {
				t.Errorf("Parse(%q) = %+v, want master of %q", name, id, tt.projectID)
			}
		} else {
			name, err := ChildName(tt.projectID, tt.taskID)
			if err != nil {
				t.Fatalf("ChildName(%q, %q): %v", tt.projectID, tt.taskID, err)
			}
			id := Parse(name)
			if id.Role != RoleChild || id.ProjectID != tt.projectID || id.TaskID != tt.taskID {
				t.Errorf("Parse(%q) = %+v, want child (%q, %q)", name, id, tt.projectID, tt.taskID)
			}
		}
	}
}

func TestParseUnknown(t *testing.T) {
	tests := []string{
		"",
		"random-session",
		"parallel_",
		"parallel__task_master",
		"parallel_DEMO_task_child_",
		"parallel_DEMO",
		"gt-gastown-witness",
		"PARALLEL_DEMO_task_master", // case-sensitive prefix
		"parallel_DEMO_task_master_extra",
	}
	for _, name := range tests {
		if id := Parse(name); id.Role != RoleUnknown {
			t.Errorf("Parse(%q) = %+v, want RoleUnknown", name, id)
		}
	}
}

func TestIsProjectSession(t *testing.T) {
	master, _ := MasterName("P")
	child, _ := ChildName("P", "T")
	otherChild, _ := ChildName("Q", "T")

	if !IsProjectSession(master, "P") {
		t.Error("master should belong to P")
	}
	if !IsProjectSession(child, "P") {
		t.Error("child should belong to P")
	}
	if IsProjectSession(otherChild, "P") {
		t.Error("Q's child should not belong to P")
	}
	if IsProjectSession("not-a-session", "P") {
		t.Error("unknown names belong to no project")
	}
}
