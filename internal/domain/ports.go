package domain

import "context"

type FleetRepo interface {
	ListFleet(ctx context.Context, node string, detailed bool) ([]VMRecord, error)
	StatusOf(ctx context.Context, node string, id int) (VMRecord, error)
}

// ConfirmFunc shows the expanded ids and returns what the operator typed.
type ConfirmFunc func(action Action, ids []int) (string, error)

type RunRequest struct {
	Node   string
	Action Action
	Expr   string // identifier set expression, e.g. "111,115-117"

	RequireConfirmation bool
	Confirm             ConfirmFunc

	// OnOutcome is called after each id, in order.
	OnOutcome func(CommandOutcome)
}

type CommandRunner interface {
	Run(ctx context.Context, req RunRequest) (RunSummary, error)
}
