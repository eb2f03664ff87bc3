package api

type CreateJobRequest struct {
	Title          string  `json:"title"`
	City           string  `json:"city"`
	Address        string  `json:"address"`
	EstimatedHours float64 `json:"estimated_hours"`
	BonusCents     int64   `json:"bonus_cents"`
	PriceCents     *int64  `json:"price_cents,omitempty"`
}

type ReturnJobRequest struct {
	Reason     string `json:"reason"`
	ReasonText string `json:"reason_text,omitempty"`
}

type AssignJobRequest struct {
	WorkerID      string `json:"worker_id"`
	Justification string `json:"justification,omitempty"`
}

type CreateOfferRequest struct {
	WorkerID   string `json:"worker_id"`
	Message    string `json:"message,omitempty"`
	TTLSeconds int    `json:"ttl_seconds,omitempty"`
}

type RespondOfferRequest struct {
	Accept bool `json:"accept"`
}

type AddWorkerRequest struct {
	WorkerID string `json:"worker_id"`
}
