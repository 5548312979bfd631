package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soilmonitoring/phoenix-iam/adapters/ginutil"
	"github.com/soilmonitoring/phoenix-iam/identity"
)

// HandleTenantGET looks a tenant up by name.
func HandleTenantGET(tenants identity.TenantRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := tenants.FindByName(c.Request.Context(), c.Param("name"))
		if errors.Is(err, identity.ErrNotFound) {
			ginutil.NotFound(c, "unknown tenant")
			return
		}
		if err != nil {
			ginutil.ServerError(c)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"client_id":    t.Name,
			"redirect_uri": t.RedirectURI,
			"scopes":       t.AllowedScopes,
			"grant_types":  t.GrantTypes,
		})
	}
}
