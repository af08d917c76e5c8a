package monitor

import (
	"errors"
	"testing"
	"time"

	"github.com/HaPhanBaoMinh/vmanager/internal/domain"
)

func fleet(n int) []domain.VMRecord {
	out := make([]domain.VMRecord, n)
	for i := range out {
		out[i] = domain.VMRecord{ID: 100 + i, Name: "vm", State: domain.StateRunning}
	}
	return out
}

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestState_LoadingToBrowsing(t *testing.T) {
	t.Parallel()

	s := New(5)
	if s.Mode != ModeLoading {
		t.Fatalf("Mode = %s, want loading", s.Mode)
	}
	s = s.WithRecords(fleet(3), t0)
	if s.Mode != ModeBrowsing || s.Cursor != 0 || s.LastRefresh != t0 {
		t.Fatalf("after load: %+v", s)
	}
}

func TestState_FailExits(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	s := New(5).Fail(boom)
	if s.Mode != ModeExiting || !errors.Is(s.Err, boom) {
		t.Fatalf("Fail() = %+v", s)
	}
}

func TestState_CursorStaysInRange(t *testing.T) {
	t.Parallel()

	s := New(3).WithRecords(fleet(10), t0)
	moves := []int{-1, -5, 1, 1, 1, 1, 20, 1, -3, -100, 4}
	for _, d := range moves {
		s = s.Move(d)
		if s.Cursor < 0 || s.Cursor > 9 {
			t.Fatalf("Move(%d) cursor = %d, out of range", d, s.Cursor)
		}
		if s.Cursor < s.Offset || s.Cursor >= s.Offset+s.Visible {
			t.Fatalf("Move(%d) cursor %d outside window [%d,%d)", d, s.Cursor, s.Offset, s.Offset+s.Visible)
		}
	}

	s = s.End()
	if s.Cursor != 9 || s.Offset != 7 {
		t.Fatalf("End() cursor/offset = %d/%d, want 9/7", s.Cursor, s.Offset)
	}
	s = s.Home()
	if s.Cursor != 0 || s.Offset != 0 {
		t.Fatalf("Home() cursor/offset = %d/%d, want 0/0", s.Cursor, s.Offset)
	}
}

func TestState_OffsetMovesOnlyWhenCursorLeavesWindow(t *testing.T) {
	t.Parallel()

	s := New(4).WithRecords(fleet(10), t0)
	s = s.Move(3) // last visible row
	if s.Offset != 0 {
		t.Fatalf("offset = %d, want 0 while cursor is inside the window", s.Offset)
	}
	s = s.Move(1)
	if s.Offset != 1 {
		t.Fatalf("offset = %d, want 1 after scrolling one past the window", s.Offset)
	}
	s = s.Move(-1)
	if s.Offset != 1 {
		t.Fatalf("offset = %d, want 1 (moving back inside must not scroll)", s.Offset)
	}
	s = s.Move(-3)
	if s.Offset != 0 || s.Cursor != 0 {
		t.Fatalf("cursor/offset = %d/%d, want 0/0", s.Cursor, s.Offset)
	}
}

func TestState_RefreshClampsCursor(t *testing.T) {
	t.Parallel()

	s := New(3).WithRecords(fleet(10), t0).End()
	s = s.WithRecords(fleet(4), t0.Add(time.Minute))
	if s.Cursor != 3 {
		t.Fatalf("Cursor = %d, want 3", s.Cursor)
	}
	if s.Cursor < s.Offset || s.Cursor >= s.Offset+s.Visible {
		t.Fatalf("cursor %d outside window at offset %d", s.Cursor, s.Offset)
	}
	s = s.WithRecords(nil, t0.Add(2*time.Minute))
	if s.Cursor != 0 || s.Offset != 0 {
		t.Fatalf("empty fleet cursor/offset = %d/%d", s.Cursor, s.Offset)
	}
	if _, ok := s.Selected(); ok {
		t.Fatalf("Selected() ok on empty fleet")
	}
	if got := s.Move(1); got.Cursor != 0 {
		t.Fatalf("Move on empty fleet cursor = %d", got.Cursor)
	}
}

func TestState_SetVisibleKeepsCursorOnScreen(t *testing.T) {
	t.Parallel()

	s := New(10).WithRecords(fleet(20), t0).Move(8)
	s = s.SetVisible(4)
	if s.Offset != 5 {
		t.Fatalf("Offset = %d, want 5", s.Offset)
	}
	if got := len(s.Window()); got != 4 {
		t.Fatalf("len(Window()) = %d, want 4", got)
	}
	if s.Window()[3].ID != 108 {
		t.Fatalf("last visible = %d, want 108", s.Window()[3].ID)
	}
}

func TestState_ConfirmDialog(t *testing.T) {
	t.Parallel()

	s := New(5).WithRecords(fleet(3), t0).Move(1)
	s = s.AskAction(domain.ActionStop)
	if s.Mode != ModeDialog || s.Dialog.Kind != DialogConfirm || s.Dialog.ID != 101 {
		t.Fatalf("AskAction() = %+v", s)
	}

	// navigation is ignored while the dialog is open
	if got := s.Move(1); got.Cursor != 1 {
		t.Fatalf("cursor moved under dialog")
	}

	declined, p := s.Answer(false)
	if p != nil || declined.Mode != ModeBrowsing {
		t.Fatalf("Answer(false) = %+v, %+v", declined, p)
	}

	accepted, p := s.Answer(true)
	if p == nil || p.Action != domain.ActionStop || p.ID != 101 || p.Quit {
		t.Fatalf("Answer(true) pending = %+v", p)
	}
	if accepted.Mode != ModeBrowsing || accepted.Dialog.Kind != DialogNone {
		t.Fatalf("Answer(true) state = %+v", accepted)
	}
}

func TestState_QuitDialog(t *testing.T) {
	t.Parallel()

	s := New(5).WithRecords(fleet(1), t0).AskQuit()
	back, p := s.Answer(false)
	if p != nil || back.Mode != ModeBrowsing {
		t.Fatalf("declined quit = %+v, %+v", back, p)
	}
	gone, p := s.Answer(true)
	if p == nil || !p.Quit || gone.Mode != ModeExiting {
		t.Fatalf("accepted quit = %+v, %+v", gone, p)
	}
}

func TestState_MessageDialogDismissesEitherWay(t *testing.T) {
	t.Parallel()

	s := New(5).WithRecords(fleet(1), t0).ShowMessage("stop failed", "HTTP 500")
	for _, yes := range []bool{true, false} {
		got, p := s.Answer(yes)
		if p != nil || got.Mode != ModeBrowsing {
			t.Fatalf("Answer(%v) = %+v, %+v", yes, got, p)
		}
	}
}

func TestState_AskActionNeedsSelection(t *testing.T) {
	t.Parallel()

	s := New(5).WithRecords(nil, t0).AskAction(domain.ActionStart)
	if s.Mode != ModeBrowsing {
		t.Fatalf("Mode = %s, want browsing", s.Mode)
	}
	if got := New(5).AskAction(domain.ActionStart); got.Mode != ModeLoading {
		t.Fatalf("AskAction during loading changed mode to %s", got.Mode)
	}
}

func TestState_RefreshDue(t *testing.T) {
	t.Parallel()

	s := New(5).WithRecords(fleet(2), t0)
	if s.RefreshDue(t0.Add(29*time.Second), 30*time.Second) {
		t.Fatalf("refresh due before interval")
	}
	if !s.RefreshDue(t0.Add(30*time.Second), 30*time.Second) {
		t.Fatalf("refresh not due at interval")
	}
	if s.AskQuit().RefreshDue(t0.Add(time.Hour), 30*time.Second) {
		t.Fatalf("refresh due while a dialog is open")
	}
	if s.Loading("x").RefreshDue(t0.Add(time.Hour), 30*time.Second) {
		t.Fatalf("refresh due while loading")
	}
}

func TestState_Counts(t *testing.T) {
	t.Parallel()

	recs := []domain.VMRecord{
		{ID: 1, State: domain.StateRunning},
		{ID: 2, State: domain.StateStopped},
		{ID: 3, State: domain.StatePaused},
		{ID: 4, State: domain.StateRunning},
	}
	total, running, stopped := New(5).WithRecords(recs, t0).Counts()
	if total != 4 || running != 2 || stopped != 1 {
		t.Fatalf("Counts() = %d/%d/%d, want 4/2/1", total, running, stopped)
	}
}
