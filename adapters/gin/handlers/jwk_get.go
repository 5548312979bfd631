package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soilmonitoring/phoenix-iam/adapters/ginutil"
	jwtkit "github.com/soilmonitoring/phoenix-iam/jwt"
)

// HandleJWKGET serves a single public key by kid, for resource servers
// verifying one token's signature.
func HandleJWKGET(keys *jwtkit.KeyManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		kid := c.Query("kid")
		if kid == "" {
			ginutil.BadRequest(c, "invalid_request", "kid is required")
			return
		}
		key, ok, err := keys.PublicKeyJWK(kid)
		if err != nil {
			ginutil.ServerError(c)
			return
		}
		if !ok {
			ginutil.BadRequest(c, "invalid_request", "unknown kid")
			return
		}
		c.JSON(http.StatusOK, key)
	}
}
