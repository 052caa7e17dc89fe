package handlers

import "net/http"

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	auth := AuthHandler{Users: deps.Users, Sessions: deps.Sessions, Limiter: deps.AuthLimiter}
	logs := LogHandler{
		Sessions:      deps.Sessions,
		Journals:      deps.Journals,
		Resolver:      deps.Resolver,
		UploadLimiter: deps.UploadLimiter,
	}

	mux.HandleFunc("/healthz", health.Handle)
	mux.HandleFunc("/api/v1/auth/login", auth.Login)
	mux.HandleFunc("/api/v1/auth/signup", auth.SignUp)
	mux.HandleFunc("/api/v1/auth/refresh", auth.Refresh)
	mux.HandleFunc("/api/v1/auth/password-reset", auth.RequestPasswordReset)
	mux.HandleFunc("/api/v1/logs", logs.handleCollection)
	mux.HandleFunc("/api/v1/logs/delete", logs.Delete)
	mux.HandleFunc("/api/v1/logs/calendar", logs.Calendar)
	mux.HandleFunc("/api/v1/logs/stats", logs.Stats)
}

// handleCollection dispatches /api/v1/logs by method since listing and
// uploading share the path.
func (h LogHandler) handleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.List(w, r)
	case http.MethodPost:
		h.Create(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users         UserStore
	Sessions      SessionManager
	Journals      JournalRegistry
	Resolver      MediaResolver
	AuthLimiter   RateLimiter
	UploadLimiter RateLimiter
}
