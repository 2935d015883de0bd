package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/favgrab/models"
)

// callerContextKey holds the rate-limit identity of an authenticated
// caller: "key:" plus a short fingerprint of the API key, never the key.
const callerContextKey = "favgrab.caller"

// keyring matches presented API keys against the configured ones by
// SHA-256 digest, comparing in constant time.
type keyring struct {
	digests [][sha256.Size]byte
}

func newKeyring(keys []string) keyring {
	var k keyring
	for _, key := range keys {
		if key = strings.TrimSpace(key); key != "" {
			k.digests = append(k.digests, sha256.Sum256([]byte(key)))
		}
	}
	return k
}

// match reports whether key is configured and returns its fingerprint.
// Every configured digest is compared so timing does not reveal which one
// matched.
func (k keyring) match(key string) (fingerprint string, ok bool) {
	d := sha256.Sum256([]byte(key))
	found := 0
	for _, want := range k.digests {
		found |= subtle.ConstantTimeCompare(d[:], want[:])
	}
	return hex.EncodeToString(d[:6]), found == 1
}

// Auth returns API-key authentication middleware for the /api group.
//
// Keys are accepted as
//
//	X-API-Key: <key>
//	Authorization: Bearer <key>
//
// An empty key list leaves the group open. A rejected request gets 401
// with a WWW-Authenticate challenge.
func Auth(apiKeys []string) gin.HandlerFunc {
	ring := newKeyring(apiKeys)
	if len(ring.digests) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := extractAPIKey(c)
		if key == "" {
			unauthorized(c, "missing API key: provide X-API-Key header or Authorization: Bearer <key>")
			return
		}
		fp, ok := ring.match(key)
		if !ok {
			unauthorized(c, "invalid API key")
			return
		}
		c.Set(callerContextKey, "key:"+fp)
		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="favgrab"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Error: msg,
		Code:  models.ErrCodeUnauthorized,
	})
}

// extractAPIKey tries X-API-Key first, then Authorization: Bearer.
func extractAPIKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
