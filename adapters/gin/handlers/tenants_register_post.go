package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/soilmonitoring/phoenix-iam/adapters/ginutil"
	"github.com/soilmonitoring/phoenix-iam/identity"
)

// HandleTenantsRegisterPOST registers a client application. The tenant
// name doubles as its client_id.
func HandleTenantsRegisterPOST(tenants identity.TenantRepository) gin.HandlerFunc {
	type tenantReq struct {
		Name        string `json:"name"`
		RedirectURI string `json:"redirectUri"`
		Scopes      string `json:"scopes"`
	}
	return func(c *gin.Context) {
		var req tenantReq
		if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" || req.RedirectURI == "" || req.Scopes == "" {
			ginutil.BadRequest(c, "invalid_request", "name, redirectUri and scopes are required")
			return
		}
		u, err := url.Parse(req.RedirectURI)
		if err != nil || !u.IsAbs() {
			ginutil.BadRequest(c, "invalid_request", "redirectUri must be an absolute URL")
			return
		}
		if existing, err := tenants.FindByName(c.Request.Context(), req.Name); err != nil && !errors.Is(err, identity.ErrNotFound) {
			ginutil.ServerError(c)
			return
		} else if existing != nil {
			ginutil.Conflict(c, "tenant name already registered")
			return
		}

		t := &identity.Tenant{
			ID:            uuid.New(),
			Name:          strings.TrimSpace(req.Name),
			RedirectURI:   req.RedirectURI,
			AllowedScopes: req.Scopes,
			GrantTypes:    "authorization_code refresh_token",
		}
		if err := tenants.Save(c.Request.Context(), t); err != nil {
			ginutil.ServerError(c)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"client_id": t.Name, "id": t.ID})
	}
}
