package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/crewpool/dispatch/internal/arbiter"
	"github.com/crewpool/dispatch/internal/observability"
	"github.com/crewpool/dispatch/internal/store"
)

// @Summary Create a job
// @Description Admin intake: the job enters the open pool
// @Tags Jobs
// @Accept json
// @Produce json
// @Param request body CreateJobRequest true "Job attributes"
// @Success 201 {object} CommandResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /v1/jobs [post]
func (s *Server) handleCreateJob(
	writer http.ResponseWriter,
	request *http.Request,
) {
	actor, ok := adminActor(writer, request)
	if !ok {
		return
	}

	var createRequest CreateJobRequest
	if err := json.NewDecoder(request.Body).Decode(&createRequest); err != nil {
		writeError(writer, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if createRequest.Title == "" {
		writeError(writer, http.StatusBadRequest, "bad_request", "title is required")
		return
	}

	jobID := uuid.New()

	err := s.store.CreateJob(request.Context(), actor.ID, store.CreateJobParams{
		ID:             jobID,
		Title:          createRequest.Title,
		City:           createRequest.City,
		Address:        createRequest.Address,
		EstimatedHours: createRequest.EstimatedHours,
		BonusCents:     createRequest.BonusCents,
		PriceCents:     createRequest.PriceCents,
	})
	if err != nil {
		writeError(writer, http.StatusInternalServerError, "internal", "failed to create job")
		return
	}

	observability.LoggerFromContext(request.Context()).Info("job created", "job_id", jobID.String())

	writeJSON(writer, http.StatusCreated, CommandResponse{
		JobID: jobID.String(),
		State: store.JobPool,
	})
}

// @Summary Claim a pooled job
// @Description Self-service claim; the losing side of a race is told the job is gone
// @Tags Jobs
// @Produce json
// @Param jobID path string true "Job ID"
// @Success 200 {object} CommandResponse
// @Failure 409 {object} ErrorResponse
// @Router /v1/jobs/{jobID}/claim [post]
func (s *Server) handleClaimJob(
	writer http.ResponseWriter,
	request *http.Request,
) {
	actor, ok := requireActor(writer, request)
	if !ok {
		return
	}

	jobID, ok := pathUUID(writer, request, "jobID")
	if !ok {
		return
	}

	result, err := s.arb.Claim(request.Context(), jobID, actor.ID)
	if err != nil {
		writeCommandError(writer, err)
		return
	}

	writeJSON(writer, http.StatusOK, commandResponse(result))
}

// @Summary Return a held job to the pool
// @Tags Jobs
// @Accept json
// @Produce json
// @Param jobID path string true "Job ID"
// @Param request body ReturnJobRequest true "Return reason"
// @Success 200 {object} CommandResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /v1/jobs/{jobID}/return [post]
func (s *Server) handleReturnJob(
	writer http.ResponseWriter,
	request *http.Request,
) {
	actor, ok := requireActor(writer, request)
	if !ok {
		return
	}

	jobID, ok := pathUUID(writer, request, "jobID")
	if !ok {
		return
	}

	var returnRequest ReturnJobRequest
	if err := json.NewDecoder(request.Body).Decode(&returnRequest); err != nil {
		writeError(writer, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if !arbiter.ValidReturnReason(returnRequest.Reason) {
		writeError(writer, http.StatusBadRequest, "invalid_reason", "unknown return reason")
		return
	}

	result, err := s.arb.ReturnToPool(
		request.Context(),
		jobID,
		actor.ID,
		returnRequest.Reason,
		returnRequest.ReasonText,
	)
	if err != nil {
		writeCommandError(writer, err)
		return
	}

	writeJSON(writer, http.StatusOK, commandResponse(result))
}

// @Summary Start work on an assigned job
// @Tags Jobs
// @Produce json
// @Param jobID path string true "Job ID"
// @Success 200 {object} CommandResponse
// @Failure 409 {object} ErrorResponse
// @Router /v1/jobs/{jobID}/start [post]
func (s *Server) handleStartJob(
	writer http.ResponseWriter,
	request *http.Request,
) {
	actor, ok := requireActor(writer, request)
	if !ok {
		return
	}

	jobID, ok := pathUUID(writer, request, "jobID")
	if !ok {
		return
	}

	result, err := s.arb.Start(request.Context(), jobID, actor.ID)
	if err != nil {
		writeCommandError(writer, err)
		return
	}

	writeJSON(writer, http.StatusOK, commandResponse(result))
}

// @Summary Complete an active job
// @Description Downstream invoicing reacts to the emitted event; its failures never undo completion
// @Tags Jobs
// @Produce json
// @Param jobID path string true "Job ID"
// @Success 200 {object} CommandResponse
// @Failure 409 {object} ErrorResponse
// @Router /v1/jobs/{jobID}/complete [post]
func (s *Server) handleCompleteJob(
	writer http.ResponseWriter,
	request *http.Request,
) {
	actor, ok := requireActor(writer, request)
	if !ok {
		return
	}

	jobID, ok := pathUUID(writer, request, "jobID")
	if !ok {
		return
	}

	result, err := s.arb.Complete(request.Context(), jobID, actor)
	if err != nil {
		writeCommandError(writer, err)
		return
	}

	writeJSON(writer, http.StatusOK, commandResponse(result))
}

// @Summary Assign a job directly to a worker
// @Description Admin override path; justification is stored on the event verbatim
// @Tags Admin
// @Accept json
// @Produce json
// @Param jobID path string true "Job ID"
// @Param request body AssignJobRequest true "Assignment"
// @Success 200 {object} CommandResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /v1/jobs/{jobID}/assign [post]
func (s *Server) handleAssignJob(
	writer http.ResponseWriter,
	request *http.Request,
) {
	actor, ok := adminActor(writer, request)
	if !ok {
		return
	}

	jobID, ok := pathUUID(writer, request, "jobID")
	if !ok {
		return
	}

	var assignRequest AssignJobRequest
	if err := json.NewDecoder(request.Body).Decode(&assignRequest); err != nil {
		writeError(writer, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	workerID, err := uuid.Parse(assignRequest.WorkerID)
	if err != nil {
		writeError(writer, http.StatusBadRequest, "bad_request", "invalid worker_id")
		return
	}

	result, err := s.arb.AdminAssign(
		request.Context(),
		jobID,
		workerID,
		assignRequest.Justification,
		actor,
	)
	if err != nil {
		writeCommandError(writer, err)
		return
	}

	writeJSON(writer, http.StatusOK, commandResponse(result))
}

// @Summary Cancel a job
// @Tags Admin
// @Produce json
// @Param jobID path string true "Job ID"
// @Success 200 {object} CommandResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /v1/jobs/{jobID}/cancel [post]
func (s *Server) handleCancelJob(
	writer http.ResponseWriter,
	request *http.Request,
) {
	actor, ok := adminActor(writer, request)
	if !ok {
		return
	}

	jobID, ok := pathUUID(writer, request, "jobID")
	if !ok {
		return
	}

	result, err := s.arb.Cancel(request.Context(), jobID, actor)
	if err != nil {
		writeCommandError(writer, err)
		return
	}

	writeJSON(writer, http.StatusOK, commandResponse(result))
}

// @Summary Offer a job to a worker
// @Tags Offers
// @Accept json
// @Produce json
// @Param jobID path string true "Job ID"
// @Param request body CreateOfferRequest true "Offer"
// @Success 201 {object} OfferResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /v1/jobs/{jobID}/offers [post]
func (s *Server) handleCreateOffer(
	writer http.ResponseWriter,
	request *http.Request,
) {
	actor, ok := adminActor(writer, request)
	if !ok {
		return
	}

	jobID, ok := pathUUID(writer, request, "jobID")
	if !ok {
		return
	}

	var offerRequest CreateOfferRequest
	if err := json.NewDecoder(request.Body).Decode(&offerRequest); err != nil {
		writeError(writer, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	workerID, err := uuid.Parse(offerRequest.WorkerID)
	if err != nil {
		writeError(writer, http.StatusBadRequest, "bad_request", "invalid worker_id")
		return
	}

	ttl := s.offerTTL
	if offerRequest.TTLSeconds > 0 {
		ttl = time.Duration(offerRequest.TTLSeconds) * time.Second
	}

	offer, err := s.arb.CreateOffer(
		request.Context(),
		jobID,
		workerID,
		offerRequest.Message,
		ttl,
		actor,
	)
	if err != nil {
		writeCommandError(writer, err)
		return
	}

	writeJSON(writer, http.StatusCreated, offerResponse(*offer))
}

// @Summary Respond to an offer
// @Description Accepting assigns the job and expires sibling offers atomically
// @Tags Offers
// @Accept json
// @Produce json
// @Param requestID path string true "Request ID"
// @Param request body RespondOfferRequest true "Response"
// @Success 200 {object} CommandResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /v1/offers/{requestID}/respond [post]
func (s *Server) handleRespondOffer(
	writer http.ResponseWriter,
	request *http.Request,
) {
	actor, ok := requireActor(writer, request)
	if !ok {
		return
	}

	requestID, ok := pathUUID(writer, request, "requestID")
	if !ok {
		return
	}

	var respondRequest RespondOfferRequest
	if err := json.NewDecoder(request.Body).Decode(&respondRequest); err != nil {
		writeError(writer, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	result, err := s.arb.Respond(request.Context(), requestID, respondRequest.Accept, actor)
	if err != nil {
		writeCommandError(writer, err)
		return
	}

	writeJSON(writer, http.StatusOK, commandResponse(result))
}

// @Summary Add a crew worker to a job
// @Tags Admin
// @Accept json
// @Produce json
// @Param jobID path string true "Job ID"
// @Param request body AddWorkerRequest true "Worker"
// @Success 200 {object} CommandResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /v1/jobs/{jobID}/workers [post]
func (s *Server) handleAddWorker(
	writer http.ResponseWriter,
	request *http.Request,
) {
	actor, ok := adminActor(writer, request)
	if !ok {
		return
	}

	jobID, ok := pathUUID(writer, request, "jobID")
	if !ok {
		return
	}

	var addRequest AddWorkerRequest
	if err := json.NewDecoder(request.Body).Decode(&addRequest); err != nil {
		writeError(writer, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	workerID, err := uuid.Parse(addRequest.WorkerID)
	if err != nil {
		writeError(writer, http.StatusBadRequest, "bad_request", "invalid worker_id")
		return
	}

	result, err := s.arb.AddWorker(request.Context(), jobID, workerID, actor)
	if err != nil {
		writeCommandError(writer, err)
		return
	}

	writeJSON(writer, http.StatusOK, commandResponse(result))
}

// @Summary Remove a worker from a job
// @Description Removing the lead sends the job back to the pool
// @Tags Admin
// @Produce json
// @Param jobID path string true "Job ID"
// @Param workerID path string true "Worker ID"
// @Success 200 {object} CommandResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /v1/jobs/{jobID}/workers/{workerID}/remove [post]
func (s *Server) handleRemoveWorker(
	writer http.ResponseWriter,
	request *http.Request,
) {
	actor, ok := adminActor(writer, request)
	if !ok {
		return
	}

	jobID, ok := pathUUID(writer, request, "jobID")
	if !ok {
		return
	}
	workerID, ok := pathUUID(writer, request, "workerID")
	if !ok {
		return
	}

	result, err := s.arb.RemoveWorker(request.Context(), jobID, workerID, actor)
	if err != nil {
		writeCommandError(writer, err)
		return
	}

	writeJSON(writer, http.StatusOK, commandResponse(result))
}

func requireActor(
	writer http.ResponseWriter,
	request *http.Request,
) (arbiter.Actor, bool) {
	actor, ok := actorFromRequest(request)
	if !ok {
		writeError(writer, http.StatusForbidden, "forbidden", "missing or invalid actor identity")
	}
	return actor, ok
}

func adminActor(
	writer http.ResponseWriter,
	request *http.Request,
) (arbiter.Actor, bool) {
	actor, ok := actorFromRequest(request)
	if !ok {
		writeError(writer, http.StatusForbidden, "forbidden", "missing or invalid actor identity")
		return actor, false
	}
	if !actor.IsAdmin() {
		writeError(writer, http.StatusForbidden, "forbidden", "admin role required")
		return actor, false
	}
	return actor, true
}

func commandResponse(result *arbiter.Result) CommandResponse {
	return CommandResponse{
		JobID: result.JobID.String(),
		State: result.State,
	}
}
