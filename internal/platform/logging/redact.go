package logging

import (
	"log/slog"
	"regexp"

	"github.com/m-mizutani/masq"
)

// sensitiveFields are attribute keys and struct field names whose values
// never reach a log line. Credential covers domain.SecurityContext, which
// is captured and logged as part of propagated contexts.
var sensitiveFields = []string{
	"Credential", "credential", "credentials",
	"password", "Password",
	"secret", "token", "session", "cookie",
	"auth", "authorization", "bearer",
	"apiKey", "apikey", "api_key",
	"accessToken", "access_token", "refreshToken", "refresh_token",
	"privateKey", "private_key", "secretKey", "secret_key",
}

var sensitivePrefixes = []string{"secret", "private"}

// sensitiveValues catch secrets logged under innocent keys, such as a raw
// authorization header.
var sensitiveValues = []*regexp.Regexp{
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
	regexp.MustCompile(`(?i)^(bearer|basic)\s+.+$`),
}

// DefaultRedactOptions returns the masq options every json and text logger
// applies.
func DefaultRedactOptions() []masq.Option {
	opts := make([]masq.Option, 0, len(sensitiveFields)+len(sensitivePrefixes)+len(sensitiveValues))

	for _, name := range sensitiveFields {
		opts = append(opts, masq.WithFieldName(name))
	}

	for _, prefix := range sensitivePrefixes {
		opts = append(opts, masq.WithFieldPrefix(prefix))
	}

	for _, re := range sensitiveValues {
		opts = append(opts, masq.WithRegex(re))
	}

	return opts
}

// NewReplaceAttr builds a slog ReplaceAttr from DefaultRedactOptions and
// any extra options.
func NewReplaceAttr(extra ...masq.Option) func(groups []string, a slog.Attr) slog.Attr {
	return masq.New(append(DefaultRedactOptions(), extra...)...)
}
