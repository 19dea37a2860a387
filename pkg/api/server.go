package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/auth"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/claims"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/metrics"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/snapshotManager"
)

/*
Server exposes snapshot tasks, payout tasks and claim proofs over HTTP.

Snapshot tasks:
  POST   /snapshots                     create a task, returns {id} immediately
  GET    /snapshots                     list, filtered by chainId, status, owner, asset
  GET    /snapshots/{id}                poll a task
  DELETE /snapshots/{id}                administrative reset

Payout tasks (the same records in the payout vocabulary):
  GET|POST /payouts/{chainId}/{assetAddress}/create   returns {task_id}
  GET      /payouts/{chainId}/task/{taskId}           PROOF_PENDING, PROOF_CREATED, PROOF_FAILED
                                                      or PAYOUT_CREATED when ?payoutManager= is given
  GET      /payouts/{chainId}                         on-chain payouts merged with open tasks

Claims:
  GET /claimable_payouts                                             payouts of the bearer's wallet
  GET /payout_info/{chainId}/{assetAddress}/tree/{rootHash}          full tree JSON
  GET /payout_info/{chainId}/{assetAddress}/tree/{rootHash}/path/{walletAddress}

Authentication:
  Bearer tokens are HS256 JWTs whose subject is a wallet address. With no verifier configured
  every request is anonymous and /claimable_payouts takes the wallet from ?investor=.
*/

const (
	readTimeout     = 30 * time.Second
	writeTimeout    = 60 * time.Second
	maxRequestBytes = 1 << 20
)

type ServerConfig struct {
	Port int
}

// Server handles HTTP requests for the payout service
type Server struct {
	manager    *snapshotManager.Manager
	claims     *claims.Service
	verifier   *auth.Verifier
	logger     *zap.Logger
	router     chi.Router
	httpServer *http.Server
}

// NewServer creates a new server instance. A nil verifier disables authentication.
func NewServer(cfg *ServerConfig, manager *snapshotManager.Manager, claimsService *claims.Service, verifier *auth.Verifier, logger *zap.Logger) *Server {
	s := &Server{
		manager:  manager,
		claims:   claimsService,
		verifier: verifier,
		logger:   logger,
		router:   chi.NewRouter(),
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(metrics.Middleware)
	s.router.Use(s.authenticate)

	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/snapshots", func(r chi.Router) {
		r.Post("/", s.handleCreateSnapshot)
		r.Get("/", s.handleListSnapshots)
		r.Get("/{id}", s.handleGetSnapshot)
		r.Delete("/{id}", s.handleDeleteSnapshot)
	})

	s.router.Route("/payouts/{chainId}", func(r chi.Router) {
		r.Get("/", s.handleGetPayouts)
		r.Get("/task/{taskId}", s.handleGetPayoutTask)
		r.Get("/{assetAddress}/create", s.handleCreatePayoutTask)
		r.Post("/{assetAddress}/create", s.handleCreatePayoutTask)
	})

	s.router.Get("/claimable_payouts", s.handleClaimablePayouts)

	s.router.Route("/payout_info/{chainId}/{assetAddress}/tree/{rootHash}", func(r chi.Router) {
		r.Get("/", s.handleGetTree)
		r.Get("/path/{walletAddress}", s.handleGetPath)
	})
}

// authenticate attaches the wallet of a valid bearer token to the request context. Requests
// without a token pass through anonymously; invalid tokens are rejected.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.verifier == nil {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := auth.BearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		subject, err := s.verifier.Verify(token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithSubject(r.Context(), subject)))
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	go func() {
		s.logger.Sugar().Infow("Starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Sugar().Errorw("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Stop drains in-flight requests until ctx expires
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// GetHandler returns the HTTP handler (for testing)
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}
