package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"eggmanager/internal/app"
	"eggmanager/internal/config"
	"eggmanager/internal/control"
	"eggmanager/internal/domain"
	"eggmanager/internal/ws"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Store is the part of the user store the HTTP layer touches directly.
type Store interface {
	domain.UserRepository
	domain.ActionLogRepository
	domain.BanRepository
}

type Server struct {
	Control *control.Service
	Store   Store
	Bridge  *ws.Bridge
	Config  config.AuthConfig
	// TrustProxy honours X-Forwarded-For for ban and audit IPs.
	TrustProxy bool

	log *zap.Logger
	now func() time.Time
}

func NewAPIServer(container *app.Container) *Server {
	return &Server{
		Control:    container.Control,
		Store:      container.Store,
		Bridge:     container.Bridge,
		Config:     container.Config.Auth,
		TrustProxy: container.Config.Server.TrustProxy,
		log:        container.Log.Named("api"),
		now:        time.Now,
	}
}

func (api *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", api.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/auth/login", api.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", api.handleLogout)

	user := func(h http.HandlerFunc) http.Handler { return api.AuthMiddleware(h, "") }
	admin := func(h http.HandlerFunc) http.Handler { return api.AuthMiddleware(h, domain.RoleAdmin) }

	mux.Handle("GET /api/me", user(api.handleMe))
	mux.Handle("PUT /api/profile", user(api.handleUpdateProfile))
	mux.Handle("PUT /api/profile/password", user(api.handleChangePassword))

	mux.Handle("GET /api/servers", user(api.handleListServers))
	mux.Handle("GET /api/servers/status", user(api.handleServerStates))
	mux.Handle("POST /api/servers/{id}/power", user(api.handlePower))
	mux.Handle("POST /api/servers/{id}/command", user(api.handleCommand))
	mux.Handle("GET /api/servers/{id}/backups", user(api.handleListBackups))
	mux.Handle("POST /api/servers/{id}/backups", user(api.handleCreateBackup))
	mux.Handle("DELETE /api/servers/{id}/backups/{uuid}", user(api.handleDeleteBackup))
	mux.Handle("GET /api/servers/{id}/files", user(api.handleListFiles))
	mux.Handle("GET /api/servers/{id}/files/contents", user(api.handleGetFileContent))
	mux.Handle("PUT /api/servers/{id}/files/contents", user(api.handleSaveFileContent))
	mux.Handle("GET /ws/servers/{id}/console", user(api.handleConsole))

	mux.Handle("GET /api/admin/users", admin(api.handleListUsers))
	mux.Handle("POST /api/admin/users", admin(api.handleCreateUser))
	mux.Handle("DELETE /api/admin/users/{id}", admin(api.handleDeleteUser))
	mux.Handle("GET /api/admin/logs", admin(api.handleListLogs))
	mux.Handle("GET /api/admin/bans", admin(api.handleListBans))
	mux.Handle("POST /api/admin/bans", admin(api.handleCreateBan))
	mux.Handle("DELETE /api/admin/bans/{id}", admin(api.handleDeleteBan))

	return api.corsMiddleware(mux)
}

// Start serves until ctx is cancelled, then drains within shutdownTimeout.
func (api *Server) Start(ctx context.Context, listenAddr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		api.log.Info("API listening", zap.String("addr", listenAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (api *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (api *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, domain.ActionResult{Success: status < 400, Message: message})
}

// statusFor maps the error taxonomy onto HTTP.
func statusFor(err error) int {
	var upstream *domain.UpstreamError
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrMissingCredentials), errors.Is(err, domain.ErrInvalidSignal),
		errors.Is(err, control.ErrEmptyCommand):
		return http.StatusBadRequest
	case errors.As(err, &upstream):
		if upstream.Status >= 400 && upstream.Status < 600 {
			return upstream.Status
		}
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (api *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		api.log.Error("request failed", zap.Error(err))
	}
	writeMessage(w, status, err.Error())
}

// writeResult answers an operation that returns (ActionResult, error).
func (api *Server) writeResult(w http.ResponseWriter, res domain.ActionResult, err error) {
	if err != nil {
		writeJSON(w, statusFor(err), res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
