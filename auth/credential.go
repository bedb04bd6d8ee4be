// Package auth issues the signed, short-lived tokens the Zhipu API expects
// in the Authorization header.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Validity is how long an issued credential stays valid.
const Validity = time.Hour

var encoding = base64.RawURLEncoding

// header is the fixed token header.
type header struct {
	Alg      string `json:"alg"`
	SignType string `json:"sign_type"`
}

// claims is the token payload. Times are epoch seconds.
type claims struct {
	APIKey    string `json:"api_key"`
	Exp       int64  `json:"exp"`
	Timestamp int64  `json:"timestamp"`
}

// Credential is a signed token proving the caller's identity.
// It is immutable once issued.
type Credential struct {
	IssuerID  string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Signature []byte

	token string
}

// Token returns the serialized form: header, payload and signature as
// base64url segments joined by ".".
func (c *Credential) Token() string {
	return c.token
}

// String implements fmt.Stringer. The signature is not included.
func (c *Credential) String() string {
	return fmt.Sprintf("credential(%s, expires %s)", c.IssuerID, c.ExpiresAt.UTC().Format(time.RFC3339))
}

// Expired reports whether the credential is no longer valid at now.
func (c *Credential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Issue creates a credential from an API key of the form "<id>.<secret>",
// valid for one hour from now.
func Issue(apiKey string) (*Credential, error) {
	return IssueAt(apiKey, time.Now())
}

// IssueAt is like Issue but uses now as the issuance time.
func IssueAt(apiKey string, now time.Time) (*Credential, error) {
	id, secret, err := splitKey(apiKey)
	if err != nil {
		return nil, err
	}

	issued := now.Unix()
	expires := issued + int64(Validity/time.Second)

	encodedHeader, err := encodeSegment(header{Alg: "HS256", SignType: "SIGN"})
	if err != nil {
		return nil, fmt.Errorf("encoding header: %w", err)
	}
	encodedClaims, err := encodeSegment(claims{APIKey: id, Exp: expires, Timestamp: issued})
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	signingInput := encodedHeader + "." + encodedClaims
	sig := sign(signingInput, secret)

	return &Credential{
		IssuerID:  id,
		IssuedAt:  time.Unix(issued, 0),
		ExpiresAt: time.Unix(expires, 0),
		Signature: sig,
		token:     signingInput + "." + encoding.EncodeToString(sig),
	}, nil
}

// splitKey splits the key on its first ".".
func splitKey(apiKey string) (id, secret string, err error) {
	if apiKey == "" {
		return "", "", &ConfigError{Reason: "api key is empty"}
	}
	id, secret, ok := strings.Cut(apiKey, ".")
	if !ok {
		return "", "", &ConfigError{Reason: `api key must have the form "<id>.<secret>"`}
	}
	if id == "" || secret == "" {
		return "", "", &ConfigError{Reason: "api key id and secret must both be non-empty"}
	}
	return id, secret, nil
}

func encodeSegment(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return encoding.EncodeToString(b), nil
}

func sign(input, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(input))
	return mac.Sum(nil)
}

// ConfigError reports a missing or malformed API key.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + e.Reason
}
