package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mahesh-arinnovate/multi-chat/pkg/core"
)

func TestManagerCreateValidation(t *testing.T) {
	m := NewManager(Deps{Provider: &fakeProvider{}, Logger: testLogger()})
	sink := &recordingSink{}

	tests := []struct {
		name      string
		scenario  string
		userName  string
		userRole  string
		sink      EventSink
		wantParam string
	}{
		{name: "missing scenario", userName: "Priya", userRole: "Backend_Engineer", sink: sink, wantParam: "scenario"},
		{name: "missing user name", scenario: "screen", userRole: "Backend_Engineer", sink: sink, wantParam: "user_name"},
		{name: "missing user role", scenario: "screen", userName: "Priya", sink: sink, wantParam: "user_role"},
		{name: "missing sink", scenario: "screen", userName: "Priya", userRole: "Backend_Engineer"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Create(context.Background(), tc.scenario, tc.userName, tc.userRole, tc.sink)
			if err == nil {
				t.Fatal("expected error")
			}
			var ce *core.Error
			if !errors.As(err, &ce) || ce.Type != core.ErrInvalidRequest {
				t.Fatalf("error = %v", err)
			}
			if ce.Param != tc.wantParam {
				t.Fatalf("param = %q, want %q", ce.Param, tc.wantParam)
			}
		})
	}
}

func TestManagerLifecycle(t *testing.T) {
	p := &fakeProvider{completeErr: errors.New("roster provider down")}
	m := NewManager(Deps{Provider: p, Logger: testLogger()})

	ctrl, err := m.Create(context.Background(), "systems design loop", "Priya", "Backend_Engineer", &recordingSink{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	sess := ctrl.Session()
	if sess.ID == "" {
		t.Fatal("session id empty")
	}
	if sess.State() != StateIdle {
		t.Fatalf("initial state = %v", sess.State())
	}
	assertDefaultRoster(t, sess.Roster)

	got, err := m.Get(sess.ID)
	if err != nil || got != ctrl {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if m.Count() != 1 {
		t.Fatalf("Count = %d", m.Count())
	}

	infos := m.List()
	if len(infos) != 1 {
		t.Fatalf("List len = %d", len(infos))
	}
	if infos[0].ID != sess.ID || infos[0].State != "idle" || len(infos[0].Agents) != 2 {
		t.Fatalf("info = %+v", infos[0])
	}

	if err := m.Delete(sess.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if sess.Context().Err() == nil {
		t.Fatal("session context not canceled by deletion")
	}
	if _, err := m.Get(sess.ID); !core.IsNotFound(err) {
		t.Fatalf("Get after delete = %v", err)
	}
	if err := m.Delete(sess.ID); !core.IsNotFound(err) {
		t.Fatalf("second Delete = %v", err)
	}
	if m.Count() != 0 {
		t.Fatalf("Count after delete = %d", m.Count())
	}
}

func TestManagerListNewestFirst(t *testing.T) {
	p := &fakeProvider{completeErr: errors.New("roster provider down")}
	m := NewManager(Deps{Provider: p, Logger: testLogger()})

	first, err := m.Create(context.Background(), "first", "Priya", "Backend_Engineer", &recordingSink{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	second, err := m.Create(context.Background(), "second", "Priya", "Backend_Engineer", &recordingSink{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	infos := m.List()
	if len(infos) != 2 {
		t.Fatalf("List len = %d", len(infos))
	}
	if infos[0].ID != second.Session().ID || infos[1].ID != first.Session().ID {
		t.Fatalf("List order wrong: %v then %v", infos[0].Scenario, infos[1].Scenario)
	}
}
