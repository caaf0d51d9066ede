package connection

import "strings"

// Environment variables consulted when neither flags nor the URI carry credentials.
const (
	EnvTokenAuth  = "CHROMA_TOKEN_AUTH"
	EnvXTokenAuth = "CHROMA_XTOKEN_AUTH"
	EnvBasicAuth  = "CHROMA_BASIC_AUTH"
)

// resolveAuth applies the precedence explicit > URI > environment > none.
func resolveAuth(explicit *Auth, fromURI Auth, lookup func(string) (string, bool)) Auth {
	if explicit != nil {
		return *explicit
	}
	if fromURI.IsSet() {
		return fromURI
	}
	if lookup != nil {
		return authFromEnv(lookup)
	}
	return NoAuth()
}

func authFromEnv(lookup func(string) (string, bool)) Auth {
	if v, ok := lookup(EnvTokenAuth); ok && v != "" {
		return TokenAuth(v, HeaderAuthorization)
	}
	if v, ok := lookup(EnvXTokenAuth); ok && v != "" {
		return TokenAuth(v, HeaderChromaToken)
	}
	if v, ok := lookup(EnvBasicAuth); ok && v != "" {
		user, pass, _ := strings.Cut(v, ":")
		return BasicAuth(user, pass)
	}
	return NoAuth()
}
