package arbiter

// Return reasons are a closed enumeration. Free-text detail rides along as
// event metadata and is never parsed for logic.
const (
	ReasonTooDifficult     = "too_difficult"
	ReasonTimeConflict     = "time_conflict"
	ReasonEquipmentMissing = "equipment_missing"
	ReasonCustomerRequest  = "customer_request"
	ReasonOther            = "other"
)

var returnReasons = map[string]bool{
	ReasonTooDifficult:     true,
	ReasonTimeConflict:     true,
	ReasonEquipmentMissing: true,
	ReasonCustomerRequest:  true,
	ReasonOther:            true,
}

func ValidReturnReason(reason string) bool {
	return returnReasons[reason]
}
