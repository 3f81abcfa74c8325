package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"growspace/core/events"
	"growspace/core/types"
	"growspace/native/growspace"
)

const (
	requestIDHeader   = "X-Request-ID"
	maxBodyBytes      = 1 << 20
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Ledger is the node surface served over HTTP.
type Ledger interface {
	InitializeTreasury(ctx context.Context, admin types.Identity, amount *uint256.Int) (*growspace.Treasury, error)
	InitializeLedgerRecord(ctx context.Context, ledgerID uint64, payer types.Identity) (*growspace.LedgerRecord, error)
	AppendVote(ctx context.Context, req growspace.AppendVoteRequest) (*growspace.AppendVoteResult, error)
	ClaimReward(ctx context.Context, req growspace.ClaimRequest) (*growspace.ClaimResult, error)

	Treasury() (*growspace.Treasury, error)
	Ledger(id uint64) (*growspace.LedgerRecord, error)
	LedgerIDs() ([]uint64, error)
	PeriodCounter(period uint64) (*growspace.PeriodCounter, error)
	UserAccount(id types.Identity, period uint64) (*growspace.UserPeriodAccount, bool, error)
	Balance(id types.Identity) (*uint256.Int, error)
	Events() *events.Feed
}

// Config configures the HTTP server.
type Config struct {
	ListenAddress string
	Auth          AuthConfig
	RateLimit     RateLimit
}

// Server exposes the ledger over HTTP and streams committed events over a
// websocket.
type Server struct {
	node    Ledger
	cfg     Config
	logger  *slog.Logger
	auth    *Authenticator
	limiter *RateLimiter
	handler http.Handler
}

// NewServer builds the router for node.
func NewServer(node Ledger, cfg Config, logger *slog.Logger) (*Server, error) {
	if node == nil {
		return nil, fmt.Errorf("rpc: node required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		node:    node,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "rpc")),
		auth:    NewAuthenticator(cfg.Auth, logger),
		limiter: NewRateLimiter(cfg.RateLimit),
	}
	s.handler = otelhttp.NewHandler(s.routes(), "growspace-rpc")
	return s, nil
}

// Handler exposes the instrumented router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimw.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(api chi.Router) {
		api.Get("/treasury", s.handleTreasury)
		api.Get("/periods/{period}", s.handlePeriod)
		api.Get("/accounts/{identity}/{period}", s.handleAccount)
		api.Get("/ledgers", s.handleLedgerIDs)
		api.Get("/ledgers/{id}", s.handleLedger)
		api.Get("/ledgers/{id}/blocks/{block}", s.handleBlock)
		api.Get("/balances/{identity}", s.handleBalance)
		api.Get("/events/ws", s.handleEventsWS)

		api.Group(func(protected chi.Router) {
			protected.Use(s.auth.Middleware())
			protected.With(s.limiter.Middleware).Post("/votes", s.handleAppendVote)
			protected.Post("/ledgers", s.handleCreateLedger)
			protected.Post("/claims", s.handleClaim)
		})
		api.With(s.auth.Middleware(ScopeAdmin)).Post("/admin/treasury", s.handleInitializeTreasury)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("rpc: listen %s: %w", s.cfg.ListenAddress, err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("rpc listening", slog.String("address", listener.Addr().String()))
		errCh <- srv.Serve(listener)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("rpc: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request served",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.String("request_id", w.Header().Get(requestIDHeader)),
			slog.Duration("duration", time.Since(start)))
	})
}
