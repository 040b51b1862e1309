package handlers

import "net/http"

// API 汇总全部处理器
type API struct {
	Health   *HealthHandler
	Sessions *SessionHandler
	Catalog  *CatalogHandler
	Runs     *RunHandler
}

// Register 在 mux 上注册全部路由
func (a *API) Register(mux *http.ServeMux, buildTime, gitCommit string) {
	mux.HandleFunc("GET /health", a.Health.HandleHealth)
	mux.HandleFunc("GET /healthz", a.Health.HandleHealthz)
	mux.HandleFunc("GET /ready", a.Health.HandleReady)
	mux.HandleFunc("GET /readyz", a.Health.HandleReady)
	mux.HandleFunc("GET /version", a.Health.HandleVersion(buildTime, gitCommit))

	auth := a.Sessions.Authenticate

	mux.HandleFunc("POST /api/v1/sessions", a.Sessions.HandleCreate)
	mux.HandleFunc("DELETE /api/v1/sessions/current", auth(a.Sessions.HandleDelete))
	mux.HandleFunc("PUT /api/v1/credentials", auth(a.Sessions.HandleSetCredential))
	mux.HandleFunc("GET /api/v1/selection", auth(a.Sessions.HandleGetSelection))
	mux.HandleFunc("PUT /api/v1/selection", auth(a.Sessions.HandlePutSelection))

	mux.HandleFunc("GET /api/v1/providers", auth(a.Catalog.HandleProviders))
	mux.HandleFunc("GET /api/v1/models", auth(a.Catalog.HandleModels))
	mux.HandleFunc("GET /api/v1/models/all", auth(a.Catalog.HandleModelsAll))

	mux.HandleFunc("POST /api/v1/runs", auth(a.Runs.HandleRun))
	mux.HandleFunc("GET /api/v1/runs/stream", auth(a.Runs.HandleStream))
}

// PublicPaths 不需要会话令牌的路径
var PublicPaths = []string{
	"/health", "/healthz", "/ready", "/readyz", "/version", "/metrics", "/api/v1/sessions",
}
