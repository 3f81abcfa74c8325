package logging

import (
	"log/slog"
	"strings"
)

// Redacted replaces secret values in log output.
const Redacted = "[REDACTED]"

// secretKeys never reach the log sink in clear text, whichever logger wrote
// them.
var secretKeys = map[string]struct{}{
	"authorization": {},
	"token":         {},
	"hmac_secret":   {},
	"otlp_headers":  {},
	"index_dsn":     {},
}

func isSecret(key string) bool {
	_, ok := secretKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskToken logs a bearer token by its last four characters so rejected
// requests can be correlated with client reports. Short tokens are hidden
// entirely.
func MaskToken(key, token string) slog.Attr {
	token = strings.TrimSpace(token)
	switch {
	case token == "":
		return slog.String(key, "")
	case len(token) <= 8:
		return slog.String(key, Redacted)
	default:
		return slog.String(key, Redacted+token[len(token)-4:])
	}
}

// redactAttr masks string attributes stored under a secret key. Values that
// MaskToken already shortened pass through.
func redactAttr(attr slog.Attr) slog.Attr {
	if !isSecret(attr.Key) || attr.Value.Kind() != slog.KindString {
		return attr
	}
	value := attr.Value.String()
	if strings.TrimSpace(value) == "" || strings.HasPrefix(value, Redacted) {
		return attr
	}
	return slog.String(attr.Key, Redacted)
}
