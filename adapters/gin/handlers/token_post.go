package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soilmonitoring/phoenix-iam/adapters/ginutil"
	"github.com/soilmonitoring/phoenix-iam/oauth"
)

// HandleTokenPOST exchanges an authorization code or refresh token for a
// fresh token pair.
func HandleTokenPOST(ctrl *oauth.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := ctrl.Token(c.Request.Context(), oauth.TokenRequest{
			GrantType:    c.PostForm("grant_type"),
			Code:         c.PostForm("code"),
			CodeVerifier: c.PostForm("code_verifier"),
			RefreshToken: c.PostForm("refresh_token"),
		})
		if err != nil {
			ginutil.RespondFlowError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}
