package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/wolfman30/whatsapp-clinic-bot/internal/whatsapp"
	"github.com/wolfman30/whatsapp-clinic-bot/pkg/logging"
)

const maxSignedBody = 1 << 20

// WhatsAppSignature verifies X-Hub-Signature-256 against appSecret and
// restores the body for the next handler. An empty secret disables the check.
func WhatsAppSignature(appSecret string, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		if appSecret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBody))
			if err != nil {
				http.Error(w, "Bad Request", http.StatusBadRequest)
				return
			}
			_ = r.Body.Close()
			if err := whatsapp.VerifySignature(appSecret, body, r.Header.Get(whatsapp.SignatureHeader)); err != nil {
				logger.Warn("webhook signature rejected", "error", err, "remote_ip", r.RemoteAddr)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}
