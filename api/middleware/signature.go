package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Webhook-Signature"

// RawBodyKey is where the verified raw body is stashed for the handler.
const RawBodyKey = "webhook_raw_body"

// VerifySignature authenticates webhook deliveries. The MAC is computed
// over the raw, unparsed body, so this must run before any JSON binding.
// Missing and mismatched signatures are both 401; nothing downstream runs
// for an unauthenticated request.
func VerifySignature(secret string, maxBodyBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		sig := c.GetHeader(SignatureHeader)
		if sig == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "signature required"})
			return
		}

		if maxBodyBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
		}
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}

		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		expected := hex.EncodeToString(mac.Sum(nil))

		if !hmac.Equal([]byte(expected), []byte(strings.ToLower(sig))) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}

		c.Set(RawBodyKey, body)
		c.Next()
	}
}
