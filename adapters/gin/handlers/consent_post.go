package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soilmonitoring/phoenix-iam/adapters/ginutil"
	"github.com/soilmonitoring/phoenix-iam/oauth"
)

// HandleConsentPOST records the decision and sends the browser to the
// client's redirect URI, carrying either the code or access_denied.
func HandleConsentPOST(ctrl *oauth.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		artifact, err := c.Cookie(oauth.SessionCookieName)
		if err != nil {
			ginutil.BadRequest(c, "invalid_request", "sign-in session is missing or invalid")
			return
		}
		redirect, err := ctrl.Consent(
			c.Request.Context(),
			artifact,
			c.PostForm("username"),
			c.PostForm("approved_scope"),
			c.PostForm("approval_status"),
		)
		if err != nil {
			ginutil.RespondFlowError(c, err)
			return
		}
		// The flow is done either way; drop the session cookie.
		c.SetCookie(oauth.SessionCookieName, "", -1, "/", "", false, true)
		c.Redirect(http.StatusSeeOther, redirect)
	}
}
