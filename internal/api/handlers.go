package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/crewpool/dispatch/internal/arbiter"
	"github.com/crewpool/dispatch/internal/store"
	"github.com/crewpool/dispatch/internal/telemetry"
)

// handleHealth godoc
// @Summary      Liveness probe
// @Tags         ops
// @Produce      text/plain
// @Success      200 {string} string "ok"
// @Router       /healthz [get]
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleReady godoc
// @Summary      Readiness probe
// @Tags         ops
// @Produce      text/plain
// @Success      200 {string} string "ready"
// @Failure      503 {string} string "not ready"
// @Router       /readyz [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

func (s *Server) handleMetrics() http.Handler {
	return telemetry.Handler()
}

// @Summary List the open pool
// @Description Jobs with no current worker, available to be claimed
// @Tags Jobs
// @Produce json
// @Param limit query int false "Maximum number of jobs (default 100)"
// @Success 200 {object} ListJobsResponse
// @Failure 500 {object} ErrorResponse
// @Router /v1/jobs/pool [get]
func (s *Server) handleListPool(
	writer http.ResponseWriter,
	request *http.Request,
) {
	actor, ok := actorFromRequest(request)
	if !ok {
		writeError(writer, http.StatusForbidden, "forbidden", "missing or invalid actor identity")
		return
	}

	limit := 100
	if rawLimit := request.URL.Query().Get("limit"); rawLimit != "" {
		if parsed, err := strconv.Atoi(rawLimit); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	jobs, err := s.store.ListPool(request.Context(), limit)
	if err != nil {
		writeError(writer, http.StatusInternalServerError, "internal", "failed to list pool")
		return
	}

	// The gauge reflects the whole pool, not the page the caller asked for.
	if depth, err := s.store.CountPool(request.Context()); err == nil {
		telemetry.PoolDepth.Set(float64(depth))
	}

	response := ListJobsResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, job := range jobs {
		response.Jobs = append(response.Jobs, jobResponseFor(job, actor.IsAdmin()))
	}

	writeJSON(writer, http.StatusOK, response)
}

// @Summary Get job details
// @Tags Jobs
// @Produce json
// @Param jobID path string true "Job ID"
// @Success 200 {object} JobResponse
// @Failure 404 {object} ErrorResponse
// @Router /v1/jobs/{jobID} [get]
func (s *Server) handleGetJob(
	writer http.ResponseWriter,
	request *http.Request,
) {
	actor, ok := actorFromRequest(request)
	if !ok {
		writeError(writer, http.StatusForbidden, "forbidden", "missing or invalid actor identity")
		return
	}

	jobID, ok := pathUUID(writer, request, "jobID")
	if !ok {
		return
	}

	job, err := s.store.GetJobByID(request.Context(), jobID)
	if err != nil {
		writeError(writer, http.StatusInternalServerError, "internal", "failed to fetch job")
		return
	}
	if job == nil || job.DeletedAt != nil {
		writeError(writer, http.StatusNotFound, "not_found", "job not found")
		return
	}

	writeJSON(writer, http.StatusOK, jobResponseFor(*job, actor.IsAdmin()))
}

// @Summary Job event history
// @Description Ordered, replayable audit trail for the job
// @Tags Jobs
// @Produce json
// @Param jobID path string true "Job ID"
// @Success 200 {object} HistoryResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /v1/jobs/{jobID}/history [get]
func (s *Server) handleHistory(
	writer http.ResponseWriter,
	request *http.Request,
) {
	if _, ok := actorFromRequest(request); !ok {
		writeError(writer, http.StatusForbidden, "forbidden", "missing or invalid actor identity")
		return
	}

	jobID, ok := pathUUID(writer, request, "jobID")
	if !ok {
		return
	}

	events, err := s.store.History(request.Context(), jobID)
	if err != nil {
		writeError(writer, http.StatusInternalServerError, "internal", "failed to fetch history")
		return
	}

	response := HistoryResponse{
		JobID:  jobID.String(),
		Events: make([]EventResponse, 0, len(events)),
	}
	for _, event := range events {
		response.Events = append(response.Events, EventResponse{
			EventID:   event.ID,
			ActorID:   event.ActorID.String(),
			Kind:      event.Kind,
			Metadata:  event.Metadata,
			CreatedAt: event.CreatedAt,
		})
	}

	writeJSON(writer, http.StatusOK, response)
}

// @Summary Current assignment
// @Description Who holds the job now, plus participating crew
// @Tags Jobs
// @Produce json
// @Param jobID path string true "Job ID"
// @Success 200 {object} AssignmentResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /v1/jobs/{jobID}/assignment [get]
func (s *Server) handleAssignment(
	writer http.ResponseWriter,
	request *http.Request,
) {
	if _, ok := actorFromRequest(request); !ok {
		writeError(writer, http.StatusForbidden, "forbidden", "missing or invalid actor identity")
		return
	}

	jobID, ok := pathUUID(writer, request, "jobID")
	if !ok {
		return
	}

	assignment, err := s.store.CurrentAssignment(request.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			writeError(writer, http.StatusNotFound, "not_found", "job not found")
			return
		}
		writeError(writer, http.StatusInternalServerError, "internal", "failed to fetch assignment")
		return
	}

	response := AssignmentResponse{
		JobID:      assignment.Job.ID.String(),
		State:      assignment.Job.State,
		AssignedAt: assignment.Job.AssignedAt,
	}
	if assignment.Job.AssignedWorker != nil {
		workerID := assignment.Job.AssignedWorker.String()
		response.AssignedWorker = &workerID
	}
	if assignment.Lead != nil {
		lead := crewMemberResponse(*assignment.Lead)
		response.Lead = &lead
	}
	for _, member := range assignment.Crew {
		response.Crew = append(response.Crew, crewMemberResponse(member))
	}

	writeJSON(writer, http.StatusOK, response)
}

// @Summary List the crew on a job
// @Description Lead and crew workers, including removed ones with their accumulated hours
// @Tags Jobs
// @Produce json
// @Param jobID path string true "Job ID"
// @Success 200 {array} CrewMemberResponse
// @Failure 403 {object} ErrorResponse
// @Router /v1/jobs/{jobID}/workers [get]
func (s *Server) handleListCrew(
	writer http.ResponseWriter,
	request *http.Request,
) {
	if _, ok := actorFromRequest(request); !ok {
		writeError(writer, http.StatusForbidden, "forbidden", "missing or invalid actor identity")
		return
	}

	jobID, ok := pathUUID(writer, request, "jobID")
	if !ok {
		return
	}

	crew, err := s.store.ListCrew(request.Context(), jobID)
	if err != nil {
		writeError(writer, http.StatusInternalServerError, "internal", "failed to list crew")
		return
	}

	members := make([]CrewMemberResponse, 0, len(crew))
	for _, member := range crew {
		members = append(members, crewMemberResponse(member))
	}

	writeJSON(writer, http.StatusOK, members)
}

// @Summary Pending offers for a worker
// @Description Open offers only; offers past their deadline are filtered out
// @Tags Offers
// @Produce json
// @Param workerID path string true "Worker ID"
// @Success 200 {object} ListOffersResponse
// @Failure 403 {object} ErrorResponse
// @Router /v1/workers/{workerID}/offers [get]
func (s *Server) handleListOffers(
	writer http.ResponseWriter,
	request *http.Request,
) {
	actor, ok := actorFromRequest(request)
	if !ok {
		writeError(writer, http.StatusForbidden, "forbidden", "missing or invalid actor identity")
		return
	}

	workerID, ok := pathUUID(writer, request, "workerID")
	if !ok {
		return
	}

	// Workers see their own offers; admins see anyone's.
	if !actor.IsAdmin() && actor.ID != workerID {
		writeError(writer, http.StatusForbidden, "forbidden", "cannot view another worker's offers")
		return
	}

	offers, err := s.store.ListPendingOffersFor(request.Context(), workerID)
	if err != nil {
		writeError(writer, http.StatusInternalServerError, "internal", "failed to list offers")
		return
	}

	response := ListOffersResponse{Offers: make([]OfferResponse, 0, len(offers))}
	for _, offer := range offers {
		response.Offers = append(response.Offers, offerResponse(offer))
	}

	writeJSON(writer, http.StatusOK, response)
}

// @Summary Trigger a sweep pass
// @Description Expire stale offers and reclaim abandoned locks now instead of waiting for the next tick
// @Tags Internal
// @Success 202 "Sweep triggered"
// @Router /internal/sweep [post]
func (s *Server) handleTriggerSweep(sweep func(context.Context)) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		go sweep(context.Background())
		writer.WriteHeader(http.StatusAccepted)
	}
}

func pathUUID(
	writer http.ResponseWriter,
	request *http.Request,
	name string,
) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(request)[name])
	if err != nil {
		writeError(writer, http.StatusBadRequest, "bad_request", "invalid "+name)
		return uuid.Nil, false
	}

	return id, true
}

func writeJSON(writer http.ResponseWriter, status int, body any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	_ = json.NewEncoder(writer).Encode(body)
}

func writeError(writer http.ResponseWriter, status int, code, message string) {
	writeJSON(writer, status, ErrorResponse{Code: code, Message: message})
}

// writeCommandError maps the arbitration taxonomy onto HTTP. Contention
// outcomes get distinct codes so callers can say "try again" for busy and
// "no longer available" for a lost race. Storage details never leak.
func writeCommandError(writer http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, arbiter.ErrBusy):
		writeError(writer, http.StatusConflict, "busy", "someone else is acting on this job, try again")
	case errors.Is(err, arbiter.ErrAlreadyClaimed):
		writeError(writer, http.StatusConflict, "already_claimed", "this job is no longer available")
	case errors.Is(err, arbiter.ErrStateConflict):
		writeError(writer, http.StatusConflict, "state_conflict", "the job changed before this action applied, refresh and retry")
	case errors.Is(err, arbiter.ErrDuplicateOffer):
		writeError(writer, http.StatusConflict, "duplicate_offer", "a pending offer already exists for this worker")
	case errors.Is(err, arbiter.ErrWorkerOnJob):
		writeError(writer, http.StatusConflict, "worker_on_job", "worker already participates in this job")
	case errors.Is(err, arbiter.ErrInvalidReason):
		writeError(writer, http.StatusBadRequest, "invalid_reason", "unknown return reason")
	case errors.Is(err, arbiter.ErrNotFound):
		writeError(writer, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, arbiter.ErrForbidden):
		writeError(writer, http.StatusForbidden, "forbidden", "not allowed")
	default:
		writeError(writer, http.StatusInternalServerError, "internal", "operation failed")
	}
}
