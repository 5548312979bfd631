package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soilmonitoring/phoenix-iam/adapters/ginutil"
	"github.com/soilmonitoring/phoenix-iam/core"
	"github.com/soilmonitoring/phoenix-iam/oauth"
)

// HandleLoginPOST verifies credentials. Bad credentials loop back to the
// login page with a hint; a covering grant short-circuits to the client
// redirect; otherwise the consent page is shown.
func HandleLoginPOST(ctrl *oauth.Controller, audit core.AuthEventLogger, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLLogin) {
			ginutil.TooMany(c)
			return
		}
		artifact, err := c.Cookie(oauth.SessionCookieName)
		if err != nil {
			ginutil.BadRequest(c, "invalid_request", "sign-in session is missing or invalid")
			return
		}
		username := c.PostForm("username")
		step, err := ctrl.Login(c.Request.Context(), artifact, username, c.PostForm("password"))
		if err != nil {
			var fe *oauth.FlowError
			if errors.As(err, &fe) && fe.Kind == oauth.KindAuthenticationFailed {
				_ = audit.LogLogin(c.Request.Context(), username, "", false, c.ClientIP())
				c.Redirect(http.StatusSeeOther, "/login?error="+fe.Hint)
				return
			}
			ginutil.RespondFlowError(c, err)
			return
		}

		_ = audit.LogLogin(c.Request.Context(), username, step.Session.ClientID, true, c.ClientIP())
		if step.ConsentRequired {
			renderConsent(c, consentPage{
				ClientID: step.Session.ClientID,
				Scope:    step.Session.Scope,
				Username: step.Username,
			})
			return
		}
		c.Redirect(http.StatusSeeOther, step.RedirectURL)
	}
}
