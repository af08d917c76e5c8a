// Package monitor holds the interactive view's state machine. It does no
// I/O; internal/app feeds it keys and results and renders it.
package monitor

import (
	"fmt"
	"time"

	"github.com/HaPhanBaoMinh/vmanager/internal/domain"
)

type Mode int

const (
	ModeLoading Mode = iota
	ModeBrowsing
	ModeDialog
	ModeExiting
)

func (m Mode) String() string {
	switch m {
	case ModeLoading:
		return "loading"
	case ModeBrowsing:
		return "browsing"
	case ModeDialog:
		return "dialog"
	case ModeExiting:
		return "exiting"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

type DialogKind int

const (
	DialogNone DialogKind = iota
	DialogConfirm
	DialogMessage
)

// Dialog is either a yes/no question about Action on ID (Quit for the quit
// prompt) or a message dismissed by any key.
type Dialog struct {
	Kind   DialogKind
	Title  string
	Body   string
	Action domain.Action
	ID     int
	Quit   bool
}

// Pending is what an accepted confirm dialog asks the loop to do next.
type Pending struct {
	Action domain.Action
	ID     int
	Quit   bool
}

// State is a value; every transition returns a new one.
type State struct {
	Records []domain.VMRecord

	Cursor  int
	Offset  int
	Visible int // rows the list pane can show

	Mode   Mode
	Dialog Dialog

	LastRefresh time.Time
	Status      string
	Err         error
}

func New(visible int) State {
	if visible < 1 {
		visible = 1
	}
	return State{Mode: ModeLoading, Visible: visible, Status: "loading fleet..."}
}

// Loading enters the blocking mode used while a refresh or action runs.
func (s State) Loading(status string) State {
	s.Mode = ModeLoading
	s.Status = status
	return s
}

// WithRecords replaces the whole list and returns to Browsing.
func (s State) WithRecords(recs []domain.VMRecord, now time.Time) State {
	s.Records = recs
	s.LastRefresh = now
	s.Mode = ModeBrowsing
	s.Cursor = clampCursor(s.Cursor, len(recs))
	s.Offset = follow(s.Offset, s.Cursor, s.Visible, len(recs))
	return s
}

// Fail ends the loop; the error is handed back to the caller.
func (s State) Fail(err error) State {
	s.Mode = ModeExiting
	s.Err = err
	return s
}

func (s State) Exit() State {
	s.Mode = ModeExiting
	return s
}

func (s State) Move(delta int) State {
	if s.Mode != ModeBrowsing || len(s.Records) == 0 {
		return s
	}
	s.Cursor = clampCursor(s.Cursor+delta, len(s.Records))
	s.Offset = follow(s.Offset, s.Cursor, s.Visible, len(s.Records))
	return s
}

func (s State) Home() State { return s.Move(-len(s.Records)) }

func (s State) End() State { return s.Move(len(s.Records)) }

// SetVisible is called on resize; the offset moves only if the cursor
// would fall out of the window.
func (s State) SetVisible(n int) State {
	if n < 1 {
		n = 1
	}
	s.Visible = n
	s.Offset = follow(s.Offset, s.Cursor, s.Visible, len(s.Records))
	return s
}

func (s State) Selected() (domain.VMRecord, bool) {
	if len(s.Records) == 0 || s.Cursor < 0 || s.Cursor >= len(s.Records) {
		return domain.VMRecord{}, false
	}
	return s.Records[s.Cursor], true
}

// Window returns the records currently on screen.
func (s State) Window() []domain.VMRecord {
	if len(s.Records) == 0 {
		return nil
	}
	end := s.Offset + s.Visible
	if end > len(s.Records) {
		end = len(s.Records)
	}
	return s.Records[s.Offset:end]
}

// AskAction opens a confirm dialog for the selected VM. Every lifecycle
// action goes through it.
func (s State) AskAction(action domain.Action) State {
	if s.Mode != ModeBrowsing {
		return s
	}
	rec, ok := s.Selected()
	if !ok {
		return s
	}
	body := fmt.Sprintf("%s VM %d (%s)?", action, rec.ID, rec.Name)
	if action.Destructive() {
		body = fmt.Sprintf("destroy VM %d (%s)? This stops and deletes it.", rec.ID, rec.Name)
	}
	s.Mode = ModeDialog
	s.Dialog = Dialog{Kind: DialogConfirm, Title: "Confirm", Body: body, Action: action, ID: rec.ID}
	return s
}

func (s State) AskQuit() State {
	if s.Mode != ModeBrowsing {
		return s
	}
	s.Mode = ModeDialog
	s.Dialog = Dialog{Kind: DialogConfirm, Title: "Quit", Body: "Quit vmanager?", Quit: true}
	return s
}

// ShowMessage opens an informational dialog.
func (s State) ShowMessage(title, body string) State {
	s.Mode = ModeDialog
	s.Dialog = Dialog{Kind: DialogMessage, Title: title, Body: body}
	return s
}

// Answer closes the dialog. For an accepted confirm it returns the work to
// do; a declined one, or any message, is a no-op back to Browsing.
func (s State) Answer(yes bool) (State, *Pending) {
	if s.Mode != ModeDialog {
		return s, nil
	}
	d := s.Dialog
	s.Dialog = Dialog{}
	s.Mode = ModeBrowsing

	if d.Kind != DialogConfirm || !yes {
		return s, nil
	}
	if d.Quit {
		s.Mode = ModeExiting
		return s, &Pending{Quit: true}
	}
	return s, &Pending{Action: d.Action, ID: d.ID}
}

// RefreshDue reports whether the periodic re-aggregation should run.
// Never while a dialog is open or something is already loading.
func (s State) RefreshDue(now time.Time, every time.Duration) bool {
	if s.Mode != ModeBrowsing || every <= 0 {
		return false
	}
	return now.Sub(s.LastRefresh) >= every
}

// Counts is the header summary.
func (s State) Counts() (total, running, stopped int) {
	for _, r := range s.Records {
		switch r.State {
		case domain.StateRunning:
			running++
		case domain.StateStopped:
			stopped++
		}
	}
	return len(s.Records), running, stopped
}

func clampCursor(c, n int) int {
	if n == 0 {
		return 0
	}
	if c < 0 {
		return 0
	}
	if c > n-1 {
		return n - 1
	}
	return c
}

// follow keeps offset unless the cursor left [offset, offset+visible).
func follow(offset, cursor, visible, n int) int {
	if n == 0 {
		return 0
	}
	if cursor < offset {
		offset = cursor
	}
	if cursor >= offset+visible {
		offset = cursor - visible + 1
	}
	if offset > n-1 {
		offset = n - 1
	}
	if offset < 0 {
		offset = 0
	}
	return offset
}
