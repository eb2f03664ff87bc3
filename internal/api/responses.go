package api

import (
	"encoding/json"
	"time"

	"github.com/crewpool/dispatch/internal/store"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CommandResponse struct {
	JobID string `json:"job_id"`
	State string `json:"state"`
}

type JobResponse struct {
	JobID          string     `json:"job_id"`
	State          string     `json:"state"`
	Title          string     `json:"title"`
	City           string     `json:"city"`
	Address        string     `json:"address"`
	EstimatedHours float64    `json:"estimated_hours"`
	BonusCents     int64      `json:"bonus_cents"`
	PriceCents     *int64     `json:"price_cents,omitempty"`
	AssignedWorker *string    `json:"assigned_worker,omitempty"`
	AssignedAt     *time.Time `json:"assigned_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type OfferResponse struct {
	RequestID   string     `json:"request_id"`
	JobID       string     `json:"job_id"`
	WorkerID    string     `json:"worker_id"`
	Status      string     `json:"status"`
	Message     string     `json:"message,omitempty"`
	ExpiresAt   time.Time  `json:"expires_at"`
	RequestedAt time.Time  `json:"requested_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

type ListOffersResponse struct {
	Offers []OfferResponse `json:"offers"`
}

type EventResponse struct {
	EventID   int64           `json:"event_id"`
	ActorID   string          `json:"actor_id"`
	Kind      string          `json:"kind"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
}

type HistoryResponse struct {
	JobID  string          `json:"job_id"`
	Events []EventResponse `json:"events"`
}

type CrewMemberResponse struct {
	WorkerID    string  `json:"worker_id"`
	IsLead      bool    `json:"is_lead"`
	Status      string  `json:"status"`
	HoursWorked float64 `json:"hours_worked"`
}

type AssignmentResponse struct {
	JobID          string               `json:"job_id"`
	State          string               `json:"state"`
	AssignedWorker *string              `json:"assigned_worker,omitempty"`
	AssignedAt     *time.Time           `json:"assigned_at,omitempty"`
	Lead           *CrewMemberResponse  `json:"lead,omitempty"`
	Crew           []CrewMemberResponse `json:"crew,omitempty"`
}

// jobResponseFor maps a job row for the given caller. The admin-set price is
// visible to admins only; workers never see it, present or not.
func jobResponseFor(job store.Job, admin bool) JobResponse {
	response := JobResponse{
		JobID:          job.ID.String(),
		State:          job.State,
		Title:          job.Title,
		City:           job.City,
		Address:        job.Address,
		EstimatedHours: job.EstimatedHours,
		BonusCents:     job.BonusCents,
		AssignedAt:     job.AssignedAt,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
	}

	if admin {
		response.PriceCents = job.PriceCents
	}
	if job.AssignedWorker != nil {
		workerID := job.AssignedWorker.String()
		response.AssignedWorker = &workerID
	}

	return response
}

func offerResponse(request store.JobRequest) OfferResponse {
	return OfferResponse{
		RequestID:   request.ID.String(),
		JobID:       request.JobID.String(),
		WorkerID:    request.WorkerID.String(),
		Status:      request.Status,
		Message:     request.Message,
		ExpiresAt:   request.ExpiresAt,
		RequestedAt: request.RequestedAt,
		RespondedAt: request.RespondedAt,
	}
}

func crewMemberResponse(worker store.JobWorker) CrewMemberResponse {
	return CrewMemberResponse{
		WorkerID:    worker.WorkerID.String(),
		IsLead:      worker.IsLead,
		Status:      worker.Status,
		HoursWorked: worker.HoursWorked,
	}
}
