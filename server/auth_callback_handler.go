package server

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/jrsteele09/go-social-login/oauthmodel"
	"github.com/rs/zerolog/log"
)

// relayPage moves fragment parameters (implicit flow) into the query string, since fragments never
// reach the server.
var relayPage = template.Must(template.New("relay").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.AppName}}</title></head>
<body>
<p>Completing sign in&hellip;</p>
<script>
if (window.location.hash.length > 1) {
  window.location.replace(window.location.pathname + "?" + window.location.hash.substring(1));
} else {
  document.body.innerHTML = "<p>No sign in is in progress.</p>";
}
</script>
</body></html>`))

var resultPage = template.Must(template.New("result").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.AppName}}</title></head>
<body>
<h3>{{.Title}}</h3>
<p>{{.Detail}}</p>
{{if .Close}}<script>setTimeout(function () { window.close(); }, 1000);</script>{{end}}
</body></html>`))

type pageData struct {
	AppName string
	Title   string
	Detail  string
	Close   bool
}

// OAuthCallbackHandler receives the provider redirect and completes the pending login.
func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Parse form to support both GET (query params) and POST (form_post response mode)
		if err := r.ParseForm(); err != nil {
			s.renderPage(w, http.StatusBadRequest, pageData{Title: "Sign in failed", Detail: "Malformed callback request."})
			return
		}
		params := r.Form

		if len(params) == 0 {
			s.renderRelay(w)
			return
		}

		redirectURL := getScheme(r) + "://" + r.Host + r.URL.Path + "?" + params.Encode()
		resp, err := s.logins.HandleRedirect(r.Context(), redirectURL)
		if err != nil {
			logError(r.Method, r.URL.Path, err.Error())
			s.renderPage(w, callbackStatus(err), pageData{Title: "Sign in failed", Detail: err.Error()})
			return
		}
		if resp == nil {
			s.renderPage(w, http.StatusBadRequest, pageData{Title: "No sign in in progress", Detail: "There is no pending login for this redirect."})
			return
		}

		log.Info().Str("provider", resp.ProviderID).Msg("login completed")
		s.renderPage(w, http.StatusOK, pageData{Title: "Signed in", Detail: "You can close this window.", Close: true})
	}
}

func callbackStatus(err error) int {
	switch {
	case errors.Is(err, oauthmodel.ErrStateMismatch),
		errors.Is(err, oauthmodel.ErrAuthorizationDenied),
		errors.Is(err, oauthmodel.ErrNoCodeOrToken):
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

func (s *Server) renderRelay(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := relayPage.Execute(w, pageData{AppName: s.config.GetAppName()}); err != nil {
		log.Error().Err(err).Msg("render relay page")
	}
}

func (s *Server) renderPage(w http.ResponseWriter, status int, data pageData) {
	data.AppName = s.config.GetAppName()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := resultPage.Execute(w, data); err != nil {
		log.Error().Err(err).Msg("render result page")
	}
}
