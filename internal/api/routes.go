package api

import (
	"net/http"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
)

func (s *Server) registerRoutes() {
	r := mux.NewRouter()
	r.Use(s.withRequestContext)

	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	r.Handle("/metrics", s.handleMetrics()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	r.HandleFunc("/v1/jobs", s.handleCreateJob).Methods(http.MethodPost)
	r.HandleFunc("/v1/jobs/pool", s.handleListPool).Methods(http.MethodGet)
	r.HandleFunc("/v1/jobs/{jobID}", s.handleGetJob).Methods(http.MethodGet)
	r.HandleFunc("/v1/jobs/{jobID}/history", s.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/v1/jobs/{jobID}/assignment", s.handleAssignment).Methods(http.MethodGet)

	r.HandleFunc("/v1/jobs/{jobID}/claim", s.handleClaimJob).Methods(http.MethodPost)
	r.HandleFunc("/v1/jobs/{jobID}/return", s.handleReturnJob).Methods(http.MethodPost)
	r.HandleFunc("/v1/jobs/{jobID}/start", s.handleStartJob).Methods(http.MethodPost)
	r.HandleFunc("/v1/jobs/{jobID}/complete", s.handleCompleteJob).Methods(http.MethodPost)

	r.HandleFunc("/v1/jobs/{jobID}/assign", s.handleAssignJob).Methods(http.MethodPost)
	r.HandleFunc("/v1/jobs/{jobID}/cancel", s.handleCancelJob).Methods(http.MethodPost)
	r.HandleFunc("/v1/jobs/{jobID}/workers", s.handleAddWorker).Methods(http.MethodPost)
	r.HandleFunc("/v1/jobs/{jobID}/workers", s.handleListCrew).Methods(http.MethodGet)
	r.HandleFunc("/v1/jobs/{jobID}/workers/{workerID}/remove", s.handleRemoveWorker).Methods(http.MethodPost)

	r.HandleFunc("/v1/jobs/{jobID}/offers", s.handleCreateOffer).Methods(http.MethodPost)
	r.HandleFunc("/v1/offers/{requestID}/respond", s.handleRespondOffer).Methods(http.MethodPost)
	r.HandleFunc("/v1/workers/{workerID}/offers", s.handleListOffers).Methods(http.MethodGet)

	if s.sweep != nil {
		r.Handle("/internal/sweep", s.handleTriggerSweep(s.sweep)).Methods(http.MethodPost)
	}

	s.mux = r
}
