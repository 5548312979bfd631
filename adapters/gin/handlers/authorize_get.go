package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soilmonitoring/phoenix-iam/adapters/ginutil"
	"github.com/soilmonitoring/phoenix-iam/oauth"
)

// HandleAuthorizeGET validates the authorization request, plants the
// signed session cookie and serves the login page. Validation failures
// answer directly with 400 and set no cookie; the redirect URI is not
// trusted yet.
func HandleAuthorizeGET(ctrl *oauth.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := oauth.AuthorizeRequest{
			ClientID:            c.Query("client_id"),
			RedirectURI:         c.Query("redirect_uri"),
			ResponseType:        c.Query("response_type"),
			Scope:               c.Query("scope"),
			State:               c.Query("state"),
			CodeChallenge:       c.Query("code_challenge"),
			CodeChallengeMethod: c.Query("code_challenge_method"),
		}
		artifact, err := ctrl.Authorize(c.Request.Context(), req)
		if err != nil {
			ginutil.RespondFlowError(c, err)
			return
		}
		setSessionCookie(c, artifact)
		renderLogin(c, http.StatusOK, loginPage{Error: loginHint(c.Query("error"))})
	}
}

func setSessionCookie(c *gin.Context, artifact string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauth.SessionCookieName, artifact, int(oauth.SessionLifetime.Seconds()), "/", "", false, true)
}
