package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/soilmonitoring/phoenix-iam/adapters/ginutil"
	jwtkit "github.com/soilmonitoring/phoenix-iam/jwt"
)

// HandleJWKSGET publishes every currently verifiable public key. The set
// is rebuilt per request so rotation is reflected immediately; ETag
// handling makes the common conditional GET cheap.
func HandleJWKSGET(keys *jwtkit.KeyManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		set, err := keys.JWKS()
		if err != nil {
			ginutil.ServerError(c)
			return
		}
		jwtkit.ServeJWKS(c.Writer, c.Request, set)
	}
}
