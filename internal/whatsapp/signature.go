package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// SignatureHeader carries the HMAC of the raw webhook body.
const SignatureHeader = "X-Hub-Signature-256"

var (
	ErrMissingSignature = errors.New("whatsapp: missing signature header")
	ErrInvalidSignature = errors.New("whatsapp: signature mismatch")
)

// VerifySignature checks header ("sha256=<hex>") against the app secret.
func VerifySignature(appSecret string, body []byte, header string) error {
	header = strings.TrimSpace(header)
	if header == "" {
		return ErrMissingSignature
	}
	if !hmac.Equal([]byte(strings.ToLower(header)), []byte("sha256="+Sign(appSecret, body))) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(appSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
