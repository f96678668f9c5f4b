package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ZapierSignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const ZapierSignatureHeader = "X-Zapier-Signature"

// ContextRawBodyKey holds the verified request body.
const ContextRawBodyKey = "rawBody"

// ZapierSignature authenticates webhook calls with a shared secret. The body is
// read at most once, up to maxBytes, and kept in the context for the handler.
func ZapierSignature(secret string, maxBytes int64) gin.HandlerFunc {
	key := []byte(secret)

	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBytes+1))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "cannot read request body", "code": "BAD_REQUEST"})
			return
		}
		if int64(len(body)) > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large", "code": "BAD_REQUEST"})
			return
		}

		if !ValidSignature(key, body, c.GetHeader(ZapierSignatureHeader)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook signature", "code": "UNAUTHORIZED"})
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Set(ContextRawBodyKey, body)
		c.Next()
	}
}

// Sign returns the hex signature of body.
func Sign(key, body []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidSignature compares signatures in constant time. An optional "sha256="
// prefix on the header is accepted.
func ValidSignature(key, body []byte, header string) bool {
	header = strings.TrimPrefix(strings.TrimSpace(header), "sha256=")
	if header == "" || len(key) == 0 {
		return false
	}
	got, err := hex.DecodeString(header)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
