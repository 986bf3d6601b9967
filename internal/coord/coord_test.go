package coord

import (
	"testing"

	"github.com/parcoord/parcoord/internal/config"
	"github.com/parcoord/parcoord/internal/fault"
)

func newTestCoordinator() *Coordinator {
	c := New(config.Default())
	c.SetLogger(func(format string, args ...interface{}) {})
	return c
}

func TestReportStatusAndDrainFlow(t *testing.T) {
	c := newTestCoordinator()
	parent := "parallel_A_task_master"
	child := "parallel_A_task_child_T"

	if err := c.RegisterRelationship(parent, child, "T", "A"); err != nil {
		t.Fatalf("RegisterRelationship failed: %v", err)
	}
	if err := c.ReportStatus(child, "Started", 0, ""); err != nil {
		t.Fatalf("ReportStatus failed: %v", err)
	}
	if err := c.ReportStatus(child, "Completed", 100, "done"); err != nil {
		t.Fatalf("ReportStatus failed: %v", err)
	}

	msgs := c.DrainMessages(parent)
	if len(msgs) != 1 || msgs[0].From != child {
		t.Errorf("messages = %+v", msgs)
	}

	s, err := c.QueryStatus(child)
	if err != nil || string(s.Status) != "Completed" {
		t.Errorf("status = %+v, %v", s, err)
	}
}

func TestReportStatus_UnknownStatus(t *testing.T) {
	c := newTestCoordinator()
	err := c.ReportStatus("parallel_A_task_master", "Napping", 0, "")
	if !fault.Is(err, fault.KindInvalidArgument) {
		t.Errorf("err = %v, want InvalidArgument", err)
	}
}

func TestSendMessage_TypeValidation(t *testing.T) {
	c := newTestCoordinator()
	if _, err := c.SendMessage("a", "b", "Carrier-Pigeon", "x"); !fault.Is(err, fault.KindInvalidArgument) {
		t.Errorf("err = %v, want InvalidArgument", err)
	}
	id, err := c.SendMessage("a", "b", "Instruction", "x")
	if err != nil || id == "" {
		t.Errorf("id = %q, err = %v", id, err)
	}
}

func TestSendDelayed_PriorityValidation(t *testing.T) {
	c := newTestCoordinator()
	if _, err := c.SendDelayed("s", "x", 0, "asap", nil, nil); !fault.Is(err, fault.KindInvalidArgument) {
		t.Errorf("err = %v, want InvalidArgument", err)
	}
	id, err := c.SendDelayed("s", "x", 0, "urgent", nil, nil)
	if err != nil || id == "" {
		t.Errorf("id = %q, err = %v", id, err)
	}
	if !c.CancelDelayed(id) {
		t.Error("cancel refused")
	}
}
