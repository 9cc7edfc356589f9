package mcpserver

import (
	"fmt"
	"net/http"

	"github.com/nhle/email-copilot/internal/gateway"
)

// CallbackPath is the path registered as the OAuth2 redirect URI.
const CallbackPath = "/oauth/callback"

// CallbackHandler serves the OAuth2 redirect and a health check.
func CallbackHandler(svc *gateway.Service) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+CallbackPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "Authorization denied: %s\n", e)
			return
		}
		code := q.Get("code")
		if code == "" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintln(w, "No authorization code")
			return
		}

		res := svc.ExchangeCallback(r.Context(), code, q.Get("state"))
		if res.Failed() {
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprintf(w, "Authentication failed: %s\n", res.Error)
			return
		}
		fmt.Fprintf(w, "Authentication successful for %s. You can close this tab.\n", res.Email)
	})

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "ok")
	})

	return mux
}
