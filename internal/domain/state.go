package domain

import (
	"fmt"
	"strings"
)

// StatePolicy decides how the coarse `status` and the fine `qmpstatus`
// signals of a summary row collapse into one VMState.
type StatePolicy string

const (
	// PolicyReference lets the fine signal win only for paused and stopped.
	PolicyReference StatePolicy = "reference"
	// PolicyFineFirst also lets a fine "running" override the coarse signal.
	PolicyFineFirst StatePolicy = "fine-first"
)

func ParseStatePolicy(s string) (StatePolicy, error) {
	switch StatePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyReference:
		return PolicyReference, nil
	case PolicyFineFirst:
		return PolicyFineFirst, nil
	default:
		return "", fmt.Errorf("unknown state policy %q (want %q or %q)", s, PolicyReference, PolicyFineFirst)
	}
}

func (p StatePolicy) Derive(coarse, fine string) VMState {
	switch VMState(strings.ToLower(strings.TrimSpace(fine))) {
	case StatePaused:
		return StatePaused
	case StateStopped:
		return StateStopped
	case StateRunning:
		if p == PolicyFineFirst {
			return StateRunning
		}
	}
	return ParseState(coarse)
}

// ParseState maps a raw status onto the closed VMState set.
func ParseState(s string) VMState {
	switch st := VMState(strings.ToLower(strings.TrimSpace(s))); st {
	case StateRunning, StateStopped, StatePaused:
		return st
	default:
		return StateUnknown
	}
}
