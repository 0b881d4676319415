package middleware

import (
	"net/http"
	"strings"
)

const (
	corsAllowHeaders = "Authorization, Content-Type, X-Request-ID"
	corsAllowMethods = "GET, POST, PUT, OPTIONS"
)

type originSet struct {
	any     bool
	allowed map[string]struct{}
}

func newOriginSet(origins []string) originSet {
	s := originSet{allowed: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		switch o = strings.TrimSpace(o); o {
		case "":
		case "*":
			s.any = true
		default:
			s.allowed[strings.TrimRight(o, "/")] = struct{}{}
		}
	}
	return s
}

func (s originSet) empty() bool { return !s.any && len(s.allowed) == 0 }

func (s originSet) allows(origin string) bool {
	if s.any {
		return true
	}
	_, ok := s.allowed[origin]
	return ok
}

// CORS lets the doctor dashboard call the live-chat API from its own origin.
// "*" in origins echoes any Origin back; no origins disables the headers.
func CORS(origins []string) func(http.Handler) http.Handler {
	set := newOriginSet(origins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			if set.allows(origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				h.Set("Access-Control-Allow-Methods", corsAllowMethods)
				h.Set("Access-Control-Max-Age", "600")
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CheckOrigin is the websocket counterpart of CORS. It returns nil when no
// origins are configured, which leaves the upgrader's same-origin check in place.
func CheckOrigin(origins []string) func(r *http.Request) bool {
	set := newOriginSet(origins)
	if set.empty() {
		return nil
	}
	return func(r *http.Request) bool {
		return set.allows(r.Header.Get("Origin"))
	}
}
