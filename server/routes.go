package server

import (
	"encoding/json"
	"net/http"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteFunc("POST "+RouteCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.HTMLMiddleWare()...)) // For form_post response mode

	s.RegisterRouteFunc("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("OPTIONS "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.APIMiddleware()...)) // CORS preflight, answered by CorsMiddleware
	s.RegisterRouteHandler("GET "+RouteMetrics, s.metrics.Handler())
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func logError(method, path, error string) {
	errorString := ansiRed + error + ansiReset
	logRouteError(colouredMethod(method), path, errorString)
}
