// Package oauth drives the authorization-code and refresh-token flows:
// request validation, login, consent, code issuance and token exchange.
package oauth

import "fmt"

// Kind classifies a flow failure so the HTTP layer can map it to a
// status and an OAuth2 error code without inspecting messages.
type Kind int

const (
	KindInvalidRequest Kind = iota
	KindInvalidClient
	KindUnsupportedGrantType
	KindUnsupportedResponseType
	KindInvalidGrant
	KindAuthenticationFailed
	KindServerError
)

// HTTPStatus maps the kind to its response status. Denied consent never
// reaches this table; it travels back via the client redirect.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidGrant:
		return 401
	case KindServerError:
		return 500
	default:
		return 400
	}
}

// OAuthCode is the error identifier placed in JSON bodies and redirect
// error parameters.
func (k Kind) OAuthCode() string {
	switch k {
	case KindInvalidClient:
		return "invalid_client"
	case KindUnsupportedGrantType:
		return "unsupported_grant_type"
	case KindUnsupportedResponseType:
		return "unsupported_response_type"
	case KindInvalidGrant:
		return "invalid_grant"
	case KindAuthenticationFailed:
		return "authentication_failed"
	case KindServerError:
		return "server_error"
	default:
		return "invalid_request"
	}
}

// FlowError is the single error type the flow returns. Description is
// safe to show to clients; Hint, when set, is a machine hint for the
// login page (invalid_credentials, account_not_activated). The wrapped
// cause, if any, stays server-side.
type FlowError struct {
	Kind        Kind
	Description string
	Hint        string
	cause       error
}

func (e *FlowError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind.OAuthCode(), e.Description, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind.OAuthCode(), e.Description)
}

func (e *FlowError) Unwrap() error { return e.cause }

func flowErr(kind Kind, description string) *FlowError {
	return &FlowError{Kind: kind, Description: description}
}

func flowErrf(kind Kind, description string, cause error) *FlowError {
	return &FlowError{Kind: kind, Description: description, cause: cause}
}

func authFailed(hint string) *FlowError {
	return &FlowError{Kind: KindAuthenticationFailed, Description: "authentication failed", Hint: hint}
}
