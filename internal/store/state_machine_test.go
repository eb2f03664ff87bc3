package store

import "testing"

func TestValidateJobTransition(t *testing.T) {
	valid := [][2]string{
		{JobPool, JobPendingRequest},
		{JobPool, JobAssigned},
		{JobPool, JobCancelled},
		{JobPendingRequest, JobAssigned},
		{JobPendingRequest, JobPool},
		{JobAssigned, JobActive},
		{JobAssigned, JobPool},
		{JobActive, JobCompleted},
		{JobActive, JobPool},
		{JobActive, JobCancelled},
	}
	for _, pair := range valid {
		if err := ValidateJobTransition(pair[0], pair[1]); err != nil {
			t.Errorf("expected %s -> %s to be allowed, got %v", pair[0], pair[1], err)
		}
	}

	invalid := [][2]string{
		{JobPool, JobActive},
		{JobPool, JobCompleted},
		{JobPendingRequest, JobActive},
		{JobAssigned, JobCompleted},
		{JobCompleted, JobPool},
		{JobCancelled, JobPool},
		{JobCompleted, JobCancelled},
		{JobPool, "unknown"},
	}
	for _, pair := range invalid {
		if err := ValidateJobTransition(pair[0], pair[1]); err == nil {
			t.Errorf("expected %s -> %s to be rejected", pair[0], pair[1])
		}
	}
}

func TestIsTerminalState(t *testing.T) {
	if !IsTerminalState(JobCompleted) || !IsTerminalState(JobCancelled) {
		t.Error("completed and cancelled must be terminal")
	}
	for _, state := range []string{JobPool, JobPendingRequest, JobAssigned, JobActive} {
		if IsTerminalState(state) {
			t.Errorf("%s must not be terminal", state)
		}
	}
}
