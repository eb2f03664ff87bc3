package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/crewpool/dispatch/internal/arbiter"
	"github.com/crewpool/dispatch/internal/store"
)

type Server struct {
	store    *store.Store
	arb      *arbiter.Arbiter
	logger   *slog.Logger
	sweep    func(context.Context)
	offerTTL time.Duration
	mux      http.Handler
}

// NewServer wires the HTTP surface. sweep may be nil, in which case the
// manual sweep endpoint is not registered. offerTTL is the deadline applied
// to offers whose create request names none.
func NewServer(
	storeLayer *store.Store,
	arb *arbiter.Arbiter,
	logger *slog.Logger,
	sweep func(context.Context),
	offerTTL time.Duration,
) *Server {
	if offerTTL <= 0 {
		offerTTL = 10 * time.Minute
	}

	server := &Server{
		store:    storeLayer,
		arb:      arb,
		logger:   logger,
		sweep:    sweep,
		offerTTL: offerTTL,
	}

	server.registerRoutes()

	return server
}

func (s *Server) Handler() http.Handler {
	return s.mux
}
