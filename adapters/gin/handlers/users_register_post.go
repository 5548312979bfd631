package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soilmonitoring/phoenix-iam/adapters/ginutil"
	"github.com/soilmonitoring/phoenix-iam/identity"
)

// HandleUsersRegisterPOST creates an inactive identity and kicks off
// activation-code delivery.
func HandleUsersRegisterPOST(svc *identity.Service) gin.HandlerFunc {
	type registerReq struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
	}
	return func(c *gin.Context) {
		var req registerReq
		if err := c.ShouldBindJSON(&req); err != nil {
			ginutil.BadRequest(c, "invalid_request", "malformed request body")
			return
		}
		id, err := svc.Register(c.Request.Context(), req.Username, req.Password, req.Email)
		switch {
		case errors.Is(err, identity.ErrDuplicate):
			ginutil.Conflict(c, "username or email already registered")
			return
		case err != nil:
			// Weak password and bad username both land here.
			ginutil.BadRequest(c, "invalid_request", err.Error())
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": id.ID, "username": id.Username})
	}
}
