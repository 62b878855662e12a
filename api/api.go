// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"connectrpc.com/grpchealth"
	"connectrpc.com/grpcreflect"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const (
	DefaultListenAddress = ":8080"
	RequestIdHeader      = "X-Request-Id"
)

type ServerConfig struct {
	ListenAddress string
	// Upper bound on the number of blocks returned by one list request
	MaxBlockListCount int
}

// Server is the JSON API and event stream for a node
type Server struct {
	config     ServerConfig
	logger     *slog.Logger
	node       Node
	httpServer *http.Server
	listenAddr net.Addr
	mu         sync.Mutex
}

// New creates a new API server instance.
func New(
	cfg ServerConfig,
	node Node,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.New(
			slog.NewJSONHandler(io.Discard, nil),
		)
	}
	logger = logger.With("component", "api")
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.MaxBlockListCount <= 0 {
		cfg.MaxBlockListCount = MaxPaginationCount
	}
	return &Server{
		config: cfg,
		logger: logger,
		node:   node,
	}
}

// Handler returns the full HTTP handler, including the gRPC health and
// reflection services
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/v0/info", s.handleInfo)
	// Accounts
	mux.HandleFunc("GET /api/v0/accounts/{address}", s.handleAccount)
	mux.HandleFunc("GET /api/v0/accounts/{address}/stake", s.handleAccountStake)
	mux.HandleFunc("GET /api/v0/accounts/{address}/stats", s.handleAccountStats)
	mux.HandleFunc("GET /api/v0/accounts/{address}/profile", s.handleAccountProfile)
	mux.HandleFunc("GET /api/v0/accounts/{address}/badges", s.handleAccountBadges)
	mux.HandleFunc("GET /api/v0/accounts/{address}/faucet", s.handleAccountFaucet)
	mux.HandleFunc(
		"GET /api/v0/accounts/{address}/allowance/{spender}",
		s.handleAccountAllowance,
	)
	// Proposals
	mux.HandleFunc("GET /api/v0/proposals", s.handleProposals)
	mux.HandleFunc("GET /api/v0/proposals/{id}", s.handleProposal)
	mux.HandleFunc("GET /api/v0/proposals/{id}/votes/{address}", s.handleProposalVote)
	mux.HandleFunc("GET /api/v0/proposals/{id}/comments", s.handleProposalComments)
	mux.HandleFunc("GET /api/v0/proposals/{id}/options", s.handleProposalOptions)
	// Reputation
	mux.HandleFunc("GET /api/v0/badges/{id}", s.handleBadge)
	mux.HandleFunc("GET /api/v0/ranks/{score}", s.handleRank)
	// Transactions and blocks
	mux.HandleFunc("POST /api/v0/tx/submit", s.handleTxSubmit)
	mux.HandleFunc("GET /api/v0/tx/{hash}", s.handleTx)
	mux.HandleFunc("GET /api/v0/blocks", s.handleBlocks)
	mux.HandleFunc("GET /api/v0/blocks/latest", s.handleLatestBlock)
	mux.HandleFunc("GET /api/v0/blocks/{height}", s.handleBlock)
	// Event stream
	mux.HandleFunc("GET /api/v0/events", s.handleEvents)
	// gRPC health and reflection for load balancers and grpcurl
	mux.Handle(
		grpchealth.NewHandler(
			grpchealth.NewStaticChecker(),
		),
	)
	mux.Handle(
		grpcreflect.NewHandlerV1(
			grpcreflect.NewStaticReflector(grpchealth.HealthV1ServiceName),
		),
	)
	mux.Handle(
		grpcreflect.NewHandlerV1Alpha(
			grpcreflect.NewStaticReflector(grpchealth.HealthV1ServiceName),
		),
	)
	return otelhttp.NewHandler(
		s.requestIdMiddleware(mux),
		"agora-api",
	)
}

// requestIdMiddleware tags every request with an id, reusing a valid id
// supplied by the client
func (s *Server) requestIdMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqId := r.Header.Get(RequestIdHeader)
		if _, err := uuid.Parse(reqId); err != nil {
			reqId = uuid.NewString()
		}
		w.Header().Set(RequestIdHeader, reqId)
		s.logger.Debug(
			"request",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", reqId,
		)
		next.ServeHTTP(w, r)
	})
}

// Start starts the HTTP server in a background goroutine.
func (s *Server) Start(
	ctx context.Context,
) error {
	s.mu.Lock()
	if s.httpServer != nil {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	server := &http.Server{
		Addr: s.config.ListenAddress,
		// Use h2c so we can serve HTTP/2 without TLS
		Handler:           h2c.NewHandler(s.Handler(), &http2.Server{}),
		ReadHeaderTimeout: 60 * time.Second,
	}
	s.httpServer = server
	s.mu.Unlock()

	// Start the server with deterministic error detection
	if err := s.startServer(server); err != nil {
		s.mu.Lock()
		s.httpServer = nil
		s.mu.Unlock()
		return err
	}

	s.logger.Info(
		"API listener started on " + s.Addr(),
	)

	// Monitor context for cancellation
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		srv := s.httpServer
		s.httpServer = nil
		s.mu.Unlock()

		if srv != nil {
			s.logger.Debug(
				"context cancelled, shutting down API server",
			)
			//nolint:contextcheck
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				30*time.Second,
			)
			defer cancel()
			//nolint:contextcheck
			if err := srv.Shutdown(shutdownCtx); err != nil {
				s.logger.Error(
					"failed to shutdown API server on context cancellation",
					"error", err,
				)
			}
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(
	ctx context.Context,
) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.mu.Unlock()

	if srv != nil {
		s.logger.Debug(
			"shutting down API server",
		)
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf(
				"failed to shutdown API server: %w",
				err,
			)
		}
	}
	return nil
}

// Addr returns the bound listen address once the server has started
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listenAddr == nil {
		return s.config.ListenAddress
	}
	return s.listenAddr.String()
}

// startServer binds the listening socket first so port conflicts are
// detected immediately, then serves in a background goroutine.
func (s *Server) startServer(
	server *http.Server,
) error {
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf(
			"failed to listen for API server: %w",
			err,
		)
	}
	s.mu.Lock()
	s.listenAddr = ln.Addr()
	s.mu.Unlock()
	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(
				"API server error",
				"error", err,
			)
		}
	}()
	return nil
}
