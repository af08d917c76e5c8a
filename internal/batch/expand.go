// Package batch expands VM id expressions and runs one lifecycle action
// over each id.
package batch

import (
	"strconv"
	"strings"

	"github.com/HaPhanBaoMinh/vmanager/internal/domain"
)

// MaxIDs caps a single expression.
const MaxIDs = 100

// ExpandIDs turns "111,115-117" into [111 115 116 117]. Order follows the
// input and duplicates are kept. Any bad token rejects the whole expression.
func ExpandIDs(expr string) ([]int, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, invalid(expr, "no ids given")
	}

	var out []int
	for _, tok := range strings.Split(expr, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return nil, invalid(expr, "empty element")
		}

		lo, hi, isRange := strings.Cut(tok, "-")
		if !isRange {
			id, err := parseID(tok)
			if err != nil {
				return nil, invalid(expr, err.Error())
			}
			out = append(out, id)
		} else {
			a, err := parseID(strings.TrimSpace(lo))
			if err != nil {
				return nil, invalid(expr, err.Error())
			}
			b, err := parseID(strings.TrimSpace(hi))
			if err != nil {
				return nil, invalid(expr, err.Error())
			}
			if a > b {
				return nil, invalid(expr, "range "+tok+" has start > end")
			}
			if b-a+1 > MaxIDs-len(out) {
				return nil, invalid(expr, "more than "+strconv.Itoa(MaxIDs)+" ids")
			}
			for id := a; id <= b; id++ {
				out = append(out, id)
			}
		}

		if len(out) > MaxIDs {
			return nil, invalid(expr, "more than "+strconv.Itoa(MaxIDs)+" ids")
		}
	}
	return out, nil
}

// JoinArgs joins command line arguments with commas, so
// `start 100 101-103` and `start 100,101-103` mean the same.
func JoinArgs(args []string) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a = strings.TrimSpace(a); a != "" {
			parts = append(parts, a)
		}
	}
	return strings.Join(parts, ",")
}

func ExpandArgs(args []string) ([]int, error) {
	return ExpandIDs(JoinArgs(args))
}

func parseID(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &badIDError{s: s}
	}
	if n <= 0 {
		return 0, &badIDError{s: s}
	}
	return n, nil
}

type badIDError struct{ s string }

func (e *badIDError) Error() string { return strconv.Quote(e.s) + " is not a positive integer" }

func invalid(expr, reason string) error {
	return &domain.ValidationError{Field: "vmid expression", Value: expr, Reason: reason}
}
