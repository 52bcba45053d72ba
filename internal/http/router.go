package http

import (
	"net/http"
	"strings"
)

// RouterConfig assembles the HTTP surface. SlackGuard wraps only the Slack
// webhook routes (signature verification); Middleware wraps everything.
type RouterConfig struct {
	Slack      *SlackHandler
	Ops        *OpsHandler
	Metrics    http.Handler
	SlackGuard func(http.Handler) http.Handler
	Middleware []func(http.Handler) http.Handler
}

// NewRouter builds the service router.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Slack != nil {
		guard := cfg.SlackGuard
		if guard == nil {
			guard = func(next http.Handler) http.Handler { return next }
		}
		mux.Handle("/slack/events", guard(postOnly(cfg.Slack.Events)))
		mux.Handle("/slack/commands", guard(postOnly(cfg.Slack.Commands)))
	}

	if cfg.Ops != nil {
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Ops.Health(w, r)
		})
		mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Ops.Ready(w, r)
		})
	}

	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics)
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

func postOnly(fn http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		fn(w, r)
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
