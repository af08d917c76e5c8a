package domain

import "testing"

func TestStatePolicy_Derive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		policy StatePolicy
		coarse string
		fine   string
		want   VMState
	}{
		{name: "fine paused wins over running", policy: PolicyReference, coarse: "running", fine: "paused", want: StatePaused},
		{name: "fine paused wins over stopped", policy: PolicyReference, coarse: "stopped", fine: "paused", want: StatePaused},
		{name: "fine stopped wins", policy: PolicyReference, coarse: "running", fine: "stopped", want: StateStopped},
		{name: "no fine running", policy: PolicyReference, coarse: "running", want: StateRunning},
		{name: "no fine stopped", policy: PolicyReference, coarse: "stopped", want: StateStopped},
		{name: "fine running ignored by reference", policy: PolicyReference, coarse: "stopped", fine: "running", want: StateStopped},
		{name: "fine running wins with fine-first", policy: PolicyFineFirst, coarse: "stopped", fine: "running", want: StateRunning},
		{name: "other fine falls back", policy: PolicyReference, coarse: "running", fine: "prelaunch", want: StateRunning},
		{name: "unknown coarse", policy: PolicyReference, coarse: "internal-error", want: StateUnknown},
		{name: "empty", policy: PolicyReference, want: StateUnknown},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.policy.Derive(tc.coarse, tc.fine); got != tc.want {
				t.Fatalf("Derive(%q, %q) = %q, want %q", tc.coarse, tc.fine, got, tc.want)
			}
		})
	}
}

func TestParseStatePolicy(t *testing.T) {
	t.Parallel()

	if p, err := ParseStatePolicy(""); err != nil || p != PolicyReference {
		t.Fatalf("ParseStatePolicy(\"\") = %q, %v, want %q", p, err, PolicyReference)
	}
	if p, err := ParseStatePolicy("Fine-First"); err != nil || p != PolicyFineFirst {
		t.Fatalf("ParseStatePolicy(Fine-First) = %q, %v, want %q", p, err, PolicyFineFirst)
	}
	if _, err := ParseStatePolicy("symmetric"); err == nil {
		t.Fatalf("ParseStatePolicy(symmetric) error = nil, want error")
	}
}

func TestOptional(t *testing.T) {
	t.Parallel()

	var unset Optional
	if unset.String() != Unavailable {
		t.Fatalf("unset.String() = %q, want %q", unset.String(), Unavailable)
	}
	empty := Some("")
	if !empty.Valid || empty.String() != "" {
		t.Fatalf("Some(\"\") = %+v, want valid empty value", empty)
	}
	b, err := unset.MarshalJSON()
	if err != nil || string(b) != "null" {
		t.Fatalf("unset.MarshalJSON() = %s, %v, want null", b, err)
	}
	b, err = Some("vmbr0").MarshalJSON()
	if err != nil || string(b) != `"vmbr0"` {
		t.Fatalf("Some(vmbr0).MarshalJSON() = %s, %v", b, err)
	}
}
