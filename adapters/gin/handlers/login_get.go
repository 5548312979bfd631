package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soilmonitoring/phoenix-iam/oauth"
)

// HandleLoginGET re-renders the login page after a failed attempt. The
// session cookie from /authorize must still be present.
func HandleLoginGET() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := c.Cookie(oauth.SessionCookieName); err != nil {
			c.Redirect(http.StatusSeeOther, "/")
			return
		}
		renderLogin(c, http.StatusOK, loginPage{Error: loginHint(c.Query("error"))})
	}
}
