// Package httpapi is the HTTP surface of the auth service.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"sportsroz.org/internal/auth"
	"sportsroz.org/internal/obs"
)

// Route prefixes. Everything under publicPrefix is reachable without a
// bearer token; everything under privatePrefix passes the access gate.
const (
	publicPrefix  = "/public"
	privatePrefix = "/private"
)

// ReadyProbe checks backing-service readiness (DB ping when configured).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options carries HTTP-layer tunables.
type Options struct {
	RateLimitPerSecond int
	RateLimitBurst     int
}

// API is the HTTP layer: routing plus the middleware stack.
type API struct {
	mux        *http.ServeMux
	auth       *auth.Service
	rbac       *auth.RBACService
	readyProbe ReadyProbe
	version    string
	opts       Options
}

// New wires every route against the injected services.
func New(authSvc *auth.Service, rbacSvc *auth.RBACService, rp ReadyProbe, version string, opts Options) *API {
	if opts.RateLimitPerSecond <= 0 {
		opts.RateLimitPerSecond = 20
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 2 * opts.RateLimitPerSecond
	}
	a := &API{
		mux:        http.NewServeMux(),
		auth:       authSvc,
		rbac:       rbacSvc,
		readyProbe: rp,
		version:    version,
		opts:       opts,
	}

	// health/ready/metrics
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	// public auth lifecycle
	a.mux.HandleFunc(publicPrefix+"/auth/register", a.handleRegister)
	a.mux.HandleFunc(publicPrefix+"/auth/verify-otp", a.handleVerifyOTP)
	a.mux.HandleFunc(publicPrefix+"/auth/resend-otp", a.handleResendOTP)
	a.mux.HandleFunc(publicPrefix+"/auth/login", a.handleLogin)
	a.mux.HandleFunc(publicPrefix+"/auth/refresh-token", a.handleRefreshToken)
	a.mux.HandleFunc(publicPrefix+"/auth/first-time/change-password", a.handleChangePassword)

	// private surface
	a.mux.HandleFunc(privatePrefix+"/auth/me", a.handleMe)
	a.mux.HandleFunc(privatePrefix+"/roles", a.handleRolesCollection)
	a.mux.HandleFunc(privatePrefix+"/roles/", a.handleRoleResource)
	a.mux.HandleFunc(privatePrefix+"/permissions", a.handlePermissionsCollection)
	a.mux.HandleFunc(privatePrefix+"/permissions/", a.handlePermissionResource)
	a.mux.HandleFunc(privatePrefix+"/users", a.handleUsersCollection)
	a.mux.HandleFunc(privatePrefix+"/users/", a.handleUserResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})

	return a
}

// Handler assembles the middleware stack around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = RateLimit(h, a.opts.RateLimitBurst, a.opts.RateLimitPerSecond)
	h = MaxBodyBytes(h, 1<<20)
	h = LoggingJSON(h)
	h = RequestID(h)
	h = CORS(h)
	h = SecurityHeaders(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "sportsroz-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
