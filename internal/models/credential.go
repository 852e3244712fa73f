package models

import (
	"fmt"
	"log/slog"
	"strings"
)

const redacted = "[REDACTED]"

// Credential is a secret used to decrypt a password protected statement.
//
// The secret is only reachable through Reveal. Every formatting path (fmt, JSON,
// text marshalling, slog) prints a placeholder instead. The zero value is not a
// credential at all: it never went through NewCredential or UnmarshalText, and
// Open rejects it as malformed.
type Credential struct {
	secret *string
}

// NewCredential wraps a secret.
func NewCredential(secret string) Credential {
	return Credential{secret: &secret}
}

// NewCredentials wraps each secret in order.
func NewCredentials(secrets ...string) []Credential {
	creds := make([]Credential, 0, len(secrets))
	for _, s := range secrets {
		creds = append(creds, NewCredential(s))
	}
	return creds
}

// Reveal returns the wrapped secret.
func (c Credential) Reveal() string {
	if c.secret == nil {
		return ""
	}
	return *c.secret
}

// Valid reports whether c was built from a secret.
func (c Credential) Valid() bool {
	return c.secret != nil
}

// Blank reports whether c wraps an empty or whitespace-only secret.
func (c Credential) Blank() bool {
	return c.secret != nil && strings.TrimSpace(*c.secret) == ""
}

func (c Credential) String() string   { return redacted }
func (c Credential) GoString() string { return redacted }

// LogValue keeps the secret out of structured logs.
func (c Credential) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

func (c Credential) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

// UnmarshalText lets config decoders (TOML, mapstructure) build credentials
// directly from string values.
func (c *Credential) UnmarshalText(text []byte) error {
	s := string(text)
	c.secret = &s
	return nil
}

// CredentialsFrom converts an untyped decoded config value into credentials.
//
// A nil value yields nil. Anything other than a list, or a list holding items that
// are not credentials (raw strings included), fails with ErrMalformedCredential.
func CredentialsFrom(raw any) ([]Credential, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []Credential:
		return v, nil
	case []any:
		creds := make([]Credential, 0, len(v))
		for i, item := range v {
			switch c := item.(type) {
			case Credential:
				creds = append(creds, c)
			case *Credential:
				if c == nil {
					return nil, fmt.Errorf("%w: item %d is nil", ErrMalformedCredential, i)
				}
				creds = append(creds, *c)
			default:
				return nil, fmt.Errorf("%w: credentials should be stored as Credential, item %d is %T", ErrMalformedCredential, i, item)
			}
		}
		return creds, nil
	case []string:
		return nil, fmt.Errorf("%w: credentials should be stored as Credential, not plain strings", ErrMalformedCredential)
	default:
		return nil, fmt.Errorf("%w: credentials should be stored in a list, got %T", ErrMalformedCredential, raw)
	}
}
