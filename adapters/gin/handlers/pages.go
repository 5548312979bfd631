package handlers

import (
	"html/template"

	"github.com/gin-gonic/gin"
)

// The login and consent pages are deliberately bare; styling belongs to
// the deployments that front this server.
var loginTmpl = template.Must(template.New("login").Parse(`<!doctype html>
<html><body>
<h1>Sign in</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form method="post" action="/login/authorization">
  <label>Username <input name="username" autocomplete="username"></label>
  <label>Password <input name="password" type="password" autocomplete="current-password"></label>
  <button type="submit">Sign in</button>
</form>
</body></html>
`))

var consentTmpl = template.Must(template.New("consent").Parse(`<!doctype html>
<html><body>
<h1>{{.ClientID}} requests access</h1>
<p>Requested scopes: {{.Scope}}</p>
<form method="post" action="/consent">
  <input type="hidden" name="username" value="{{.Username}}">
  <input type="hidden" name="approved_scope" value="{{.Scope}}">
  <button type="submit" name="approval_status" value="YES">Approve</button>
  <button type="submit" name="approval_status" value="NO">Deny</button>
</form>
</body></html>
`))

type loginPage struct {
	Error string
}

type consentPage struct {
	ClientID string
	Scope    string
	Username string
}

func renderLogin(c *gin.Context, status int, p loginPage) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	_ = loginTmpl.Execute(c.Writer, p)
}

func renderConsent(c *gin.Context, p consentPage) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(200)
	_ = consentTmpl.Execute(c.Writer, p)
}

// loginHint translates the machine hint into the message shown on the
// re-authentication page.
func loginHint(hint string) string {
	switch hint {
	case "account_not_activated":
		return "Your account is not activated yet. Check your email for the activation code."
	case "invalid_credentials":
		return "Invalid username or password."
	default:
		return ""
	}
}
