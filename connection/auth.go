package connection

import (
	"fmt"
	"net/http"
	"strings"
)

// AuthType selects how credentials are presented to a remote store.
type AuthType int

const (
	// AuthNone sends no credentials.
	AuthNone AuthType = iota
	// AuthBasic sends HTTP basic credentials.
	AuthBasic
	// AuthToken sends a token in a fixed header.
	AuthToken
)

func (t AuthType) String() string {
	switch t {
	case AuthBasic:
		return "basic"
	case AuthToken:
		return "token"
	default:
		return "none"
	}
}

// Token transport headers.
const (
	HeaderAuthorization = "Authorization"
	HeaderChromaToken   = "X-Chroma-Token"
)

// User-info sentinels selecting token auth.
const (
	sentinelAuthToken   = "__auth_token__"
	sentinelXChromaAuth = "__x_chroma_token__"
)

// Auth describes the credentials attached to a connection.
type Auth struct {
	Type     AuthType
	Username string
	Password string
	Token    string
	Header   string
}

// NoAuth returns an empty descriptor.
func NoAuth() Auth {
	return Auth{Type: AuthNone}
}

// BasicAuth returns a basic auth descriptor.
func BasicAuth(username, password string) Auth {
	return Auth{Type: AuthBasic, Username: username, Password: password}
}

// TokenAuth returns a token descriptor sent in header.
func TokenAuth(token, header string) Auth {
	if header == "" {
		header = HeaderAuthorization
	}
	return Auth{Type: AuthToken, Token: token, Header: header}
}

// IsSet reports whether the descriptor carries credentials.
func (a Auth) IsSet() bool {
	return a.Type != AuthNone
}

// Apply adds the credentials to an outgoing request.
func (a Auth) Apply(req *http.Request) {
	switch a.Type {
	case AuthBasic:
		req.SetBasicAuth(a.Username, a.Password)
	case AuthToken:
		if strings.EqualFold(a.Header, HeaderAuthorization) {
			req.Header.Set(HeaderAuthorization, "Bearer "+a.Token)
			return
		}
		req.Header.Set(a.Header, a.Token)
	}
}

// String renders the descriptor without secrets.
func (a Auth) String() string {
	switch a.Type {
	case AuthBasic:
		return fmt.Sprintf("basic{user=%s}", a.Username)
	case AuthToken:
		return fmt.Sprintf("token{header=%s}", a.Header)
	default:
		return "none"
	}
}

// authFromUserInfo interprets the user-info part of a remote URI.
func authFromUserInfo(username, password string) Auth {
	switch username {
	case "":
		return NoAuth()
	case sentinelAuthToken:
		return TokenAuth(password, HeaderAuthorization)
	case sentinelXChromaAuth:
		return TokenAuth(password, HeaderChromaToken)
	default:
		return BasicAuth(username, password)
	}
}

