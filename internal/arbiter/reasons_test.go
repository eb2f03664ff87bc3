package arbiter

import "testing"

func TestValidReturnReason(t *testing.T) {
	for _, reason := range []string{
		ReasonTooDifficult,
		ReasonTimeConflict,
		ReasonEquipmentMissing,
		ReasonCustomerRequest,
		ReasonOther,
	} {
		if !ValidReturnReason(reason) {
			t.Errorf("expected %q to be valid", reason)
		}
	}

	for _, reason := range []string{"", "because", "TOO_DIFFICULT"} {
		if ValidReturnReason(reason) {
			t.Errorf("expected %q to be rejected", reason)
		}
	}
}
