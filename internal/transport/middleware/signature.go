package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
)

// SignatureHeader carries the base64 HMAC-SHA256 of the raw request body.
const SignatureHeader = "Tally-Signature"

// VerifySignature returns middleware that rejects requests whose
// Tally-Signature does not match the body signed with secret. An empty
// secret disables verification and returns nil.
func VerifySignature(secret string, maxBody int64, logger *slog.Logger) Middleware {
	if secret == "" {
		return nil
	}
	key := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
			if err != nil {
				writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}

			got, err := base64.StdEncoding.DecodeString(r.Header.Get(SignatureHeader))
			if err != nil || !hmac.Equal(got, Sign(key, body)) {
				logger.WarnContext(r.Context(), "webhook signature rejected",
					slog.String("path", r.URL.Path),
					slog.String("client_ip", clientIP(r)),
				)
				writeError(w, http.StatusUnauthorized, "invalid signature")
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

// Sign returns the raw HMAC-SHA256 of body under key.
func Sign(key, body []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return mac.Sum(nil)
}
