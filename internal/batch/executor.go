package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/HaPhanBaoMinh/vmanager/internal/domain"
	"github.com/HaPhanBaoMinh/vmanager/internal/infrastructure/pve"
)

// ConfirmToken is the only answer that lets a destructive batch through.
const ConfirmToken = "yes"

// ErrDeclined is returned when a destructive batch was not confirmed.
// Nothing was sent.
var ErrDeclined = errors.New("batch: not confirmed")

// Transport is the write side of the pve client.
type Transport interface {
	Post(ctx context.Context, path string, form url.Values) (json.RawMessage, error)
	Delete(ctx context.Context, path string) (json.RawMessage, error)
}

type step struct {
	method string // POST or DELETE
	parts  []string
}

// routes maps an action to the calls it makes per id, in order.
var routes = map[domain.Action][]step{
	domain.ActionStart:    {{method: "POST", parts: []string{"status", "start"}}},
	domain.ActionStop:     {{method: "POST", parts: []string{"status", "stop"}}},
	domain.ActionShutdown: {{method: "POST", parts: []string{"status", "shutdown"}}},
	domain.ActionReboot:   {{method: "POST", parts: []string{"status", "reboot"}}},
	domain.ActionSuspend:  {{method: "POST", parts: []string{"status", "suspend"}}},
	domain.ActionResume:   {{method: "POST", parts: []string{"status", "resume"}}},
	// stop may fail on an already stopped guest; the delete still runs
	domain.ActionDestroy: {
		{method: "POST", parts: []string{"status", "stop"}},
		{method: "DELETE"},
	},
}

// Executor runs lifecycle actions one id at a time.
type Executor struct {
	tr     Transport
	logger *slog.Logger
}

var _ domain.CommandRunner = (*Executor)(nil)

func NewExecutor(tr Transport, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{tr: tr, logger: logger}
}

// Run validates everything before the first request. Per-id failures are
// recorded in the summary and never stop the batch.
func (e *Executor) Run(ctx context.Context, req domain.RunRequest) (domain.RunSummary, error) {
	summary := domain.RunSummary{Action: req.Action}

	steps, ok := routes[req.Action]
	if !ok {
		return summary, &domain.ValidationError{Field: "action", Value: req.Action.String(), Reason: "unknown action"}
	}
	if req.Node == "" {
		return summary, &domain.ValidationError{Field: "node", Reason: "node is required"}
	}
	ids, err := ExpandIDs(req.Expr)
	if err != nil {
		return summary, err
	}

	if req.Action.Destructive() && req.RequireConfirmation {
		if req.Confirm == nil {
			return summary, ErrDeclined
		}
		answer, err := req.Confirm(req.Action, append([]int(nil), ids...))
		if err != nil {
			return summary, fmt.Errorf("confirm %s: %w", req.Action, err)
		}
		if answer != ConfirmToken {
			e.logger.Info("batch declined", "action", req.Action, "ids", len(ids))
			return summary, ErrDeclined
		}
	}

	summary.Outcomes = make([]domain.CommandOutcome, 0, len(ids))
	for _, id := range ids {
		out := e.runOne(ctx, req.Node, id, steps)
		if out.OK {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
		summary.Outcomes = append(summary.Outcomes, out)
		if req.OnOutcome != nil {
			req.OnOutcome(out)
		}
	}

	e.logger.Info("batch finished", "action", req.Action, "node", req.Node,
		"succeeded", summary.Succeeded, "failed", summary.Failed)
	return summary, nil
}

// runOne reports the last step's result; earlier failures only add detail.
func (e *Executor) runOne(ctx context.Context, node string, id int, steps []step) domain.CommandOutcome {
	out := domain.CommandOutcome{ID: id}
	var notes []string

	for i, s := range steps {
		path := pve.QemuPath(node, id, s.parts...)

		var (
			data json.RawMessage
			err  error
		)
		if s.method == "DELETE" {
			data, err = e.tr.Delete(ctx, path)
		} else {
			data, err = e.tr.Post(ctx, path, url.Values{})
		}

		last := i == len(steps)-1
		if err != nil {
			e.logger.Debug("batch step failed", "vmid", id, "method", s.method, "path", path, "error", err)
			notes = append(notes, stepName(s)+": "+pve.Diagnostic(err))
			if last {
				out.OK = false
			}
			continue
		}
		if last {
			out.OK = true
			out.Task = pve.TaskID(data)
		}
	}

	if len(notes) > 0 {
		out.Detail = strings.Join(notes, "; ")
	}
	return out
}

func stepName(s step) string {
	if s.method == "DELETE" {
		return "delete"
	}
	return s.parts[len(s.parts)-1]
}
