package rpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"rocket/core/events"
	"rocket/gateway/middleware"
	"rocket/native/items"
	"rocket/native/permissions"
	"rocket/native/rocket"
	"rocket/native/token"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// Config carries the transport settings of the API server.
type Config struct {
	ListenAddress  string
	Auth           middleware.AuthConfig
	CORS           middleware.CORSConfig
	Observability  middleware.ObservabilityConfig
	RateLimits     map[string]middleware.RateLimit
	WSOrigins      []string
	IdempotencyTTL time.Duration
}

// Services are the modules the API exposes.
type Services struct {
	Items       *items.Registry
	Permissions *permissions.Controller
	Tokens      *token.Ledger
	Pools       *rocket.Engine
	Events      *events.Broker
}

// Server is the REST and websocket front end of the node.
type Server struct {
	cfg     Config
	svc     Services
	logger  *slog.Logger
	auth    *middleware.Authenticator
	limiter *middleware.RateLimiter
	obs     *middleware.Observability
	idem    *IdempotencyStore
	router  chi.Router
}

// NewServer builds the router. idem may be nil, in which case Idempotency-Key
// headers are ignored.
func NewServer(cfg Config, svc Services, idem *IdempotencyStore, logger *slog.Logger) (*Server, error) {
	if svc.Items == nil || svc.Permissions == nil || svc.Tokens == nil || svc.Pools == nil {
		return nil, errors.New("rpc: all module services are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		svc:     svc,
		logger:  logger,
		auth:    middleware.NewAuthenticator(cfg.Auth, logger),
		limiter: middleware.NewRateLimiter(cfg.RateLimits, logger),
		obs:     middleware.NewObservability(cfg.Observability, logger),
		idem:    idem,
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root handler wrapped with otel HTTP instrumentation.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, s.cfg.Observability.ServiceName)
}

// Serve runs the server on ln until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(s.cfg.CORS))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.obs.MetricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.auth.Middleware())

		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware("items"))
			s.route(r, http.MethodPost, "items", "/items/admins", s.handleItemsAdminAdd)
			s.route(r, http.MethodDelete, "items", "/items/admins", s.handleItemsAdminRemove)
			s.route(r, http.MethodPost, "items", "/items/mint", s.handleItemsMint)
			s.route(r, http.MethodPost, "items", "/items/burn", s.handleItemsBurn)
			s.route(r, http.MethodPost, "items", "/items/transfer", s.handleItemsTransfer)
			s.route(r, http.MethodGet, "items", "/items/{account}/{id}", s.handleItemsBalance)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware("permissions"))
			s.route(r, http.MethodGet, "permissions", "/permissions/tiers", s.handleTiers)
			s.route(r, http.MethodPost, "permissions", "/permissions/tiers", s.handleCreateTier)
			s.route(r, http.MethodPost, "permissions", "/permissions/tiers/{id}/assign", s.handleAssignTier)
			s.route(r, http.MethodPost, "permissions", "/permissions/tiers/{id}/revoke", s.handleRevokeTier)
			s.route(r, http.MethodPost, "permissions", "/permissions/items/{id}/assign", s.handleAssignItem)
			s.route(r, http.MethodPost, "permissions", "/permissions/items/{id}/remove", s.handleRemoveItem)
			s.route(r, http.MethodPost, "permissions", "/permissions/suspend", s.handleStatus(statusSuspend))
			s.route(r, http.MethodPost, "permissions", "/permissions/unsuspend", s.handleStatus(statusUnsuspend))
			s.route(r, http.MethodPost, "permissions", "/permissions/reject", s.handleStatus(statusReject))
			s.route(r, http.MethodPost, "permissions", "/permissions/unreject", s.handleStatus(statusUnreject))
			s.route(r, http.MethodGet, "permissions", "/permissions/registry", s.handleRegistry)
			s.route(r, http.MethodPost, "permissions", "/permissions/registry", s.handleSetRegistry)
			s.route(r, http.MethodPost, "permissions", "/permissions/admins", s.handlePermissionsAdminAdd)
			s.route(r, http.MethodDelete, "permissions", "/permissions/admins", s.handlePermissionsAdminRemove)
			s.route(r, http.MethodGet, "permissions", "/permissions/accounts/{account}", s.handleAccountStatus)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware("tokens"))
			s.route(r, http.MethodGet, "tokens", "/tokens", s.handleTokens)
			s.route(r, http.MethodPost, "tokens", "/tokens/{token}/approve", s.handleApprove)
			s.route(r, http.MethodPost, "tokens", "/tokens/{token}/transfer", s.handleTransfer)
			s.route(r, http.MethodGet, "tokens", "/tokens/{token}/balances/{account}", s.handleBalance)
			s.route(r, http.MethodGet, "tokens", "/tokens/{token}/allowances/{owner}/{spender}", s.handleAllowance)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware("pools"))
			s.route(r, http.MethodGet, "rocket", "/pools", s.handlePools)
			s.route(r, http.MethodPost, "rocket", "/pools", s.handleCreatePool)
			s.route(r, http.MethodGet, "rocket", "/pools/config", s.handleConfig)
			s.route(r, http.MethodPost, "rocket", "/pools/config/fee", s.handleSetFee)
			s.route(r, http.MethodPost, "rocket", "/pools/admins", s.handleRocketAdminAdd)
			s.route(r, http.MethodDelete, "rocket", "/pools/admins", s.handleRocketAdminRemove)
			s.route(r, http.MethodGet, "rocket", "/pools/{id}", s.handlePool)
			s.route(r, http.MethodGet, "rocket", "/pools/{id}/schedules", s.handleSchedules)
			s.route(r, http.MethodPost, "rocket", "/pools/{id}/contribution-schedules", s.handleCreateSchedule)
			s.route(r, http.MethodPost, "rocket", "/pools/{id}/distribution-schedules", s.handleCreateDistribution)
			s.route(r, http.MethodPost, "rocket", "/pools/{id}/contribute", s.handleContribute)
			s.route(r, http.MethodPost, "rocket", "/pools/{id}/withdraw", s.handleWithdraw)
			s.route(r, http.MethodPost, "rocket", "/pools/{id}/rewards/deposit", s.handleDepositReward)
			s.route(r, http.MethodPost, "rocket", "/pools/{id}/rewards/claim", s.handleClaim)
			s.route(r, http.MethodGet, "rocket", "/pools/{id}/contributions/{schedule}/{account}", s.handleContribution)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware("events"))
			s.route(r, http.MethodGet, "events", "/events", s.handleEventBacklog)
			s.route(r, http.MethodGet, "events", "/events/ws", s.handleEventsWS)
		})
	})
	return r
}

// route registers h with per-route observability. POST routes also honour
// Idempotency-Key.
func (s *Server) route(r chi.Router, method, module, pattern string, h http.HandlerFunc) {
	var handler http.Handler = h
	if method == http.MethodPost {
		handler = s.idempotent(handler)
	}
	r.With(s.obs.Middleware(module, "/v1"+pattern)).Method(method, pattern, handler)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// caller returns the authenticated account or answers 401.
func (s *Server) caller(w http.ResponseWriter, r *http.Request) ([20]byte, bool) {
	caller, ok := middleware.CallerFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "caller required", Code: "unauthenticated"})
		return [20]byte{}, false
	}
	return caller, true
}
