package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soilmonitoring/phoenix-iam/adapters/ginutil"
	"github.com/soilmonitoring/phoenix-iam/identity"
)

// HandleUsersActivatePOST flips the activation flag when the emailed
// code matches.
func HandleUsersActivatePOST(svc *identity.Service) gin.HandlerFunc {
	type activateReq struct {
		Username string `json:"username"`
		Code     string `json:"code"`
	}
	return func(c *gin.Context) {
		var req activateReq
		if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Code == "" {
			ginutil.BadRequest(c, "invalid_request", "username and code are required")
			return
		}
		err := svc.Activate(c.Request.Context(), req.Username, req.Code)
		switch {
		case errors.Is(err, identity.ErrNotFound):
			ginutil.NotFound(c, "unknown username")
			return
		case errors.Is(err, identity.ErrActivationExpired):
			ginutil.BadRequest(c, "activation_expired", "activation code expired; register again")
			return
		case errors.Is(err, identity.ErrActivationMismatch):
			ginutil.BadRequest(c, "activation_mismatch", "activation code does not match")
			return
		case err != nil:
			ginutil.ServerError(c)
			return
		}
		c.JSON(http.StatusOK, gin.H{"activated": true})
	}
}
