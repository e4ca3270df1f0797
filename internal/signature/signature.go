// Package signature builds and verifies the keyed request signatures the
// payment gateway requires on every call and notification.
//
// A signature covers a fixed-order component string:
//
//	Client-Id:<client id>
//	Request-Id:<request id>
//	Request-Timestamp:<timestamp>
//	Request-Target:<path>
//	Digest:<base64 sha256 of body>
//
// The Digest line is left out entirely for requests without a body.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Prefix is prepended to the base64 HMAC in the Signature header.
const Prefix = "HMACSHA256="

// TimestampLayout is ISO-8601 UTC at whole-second precision.
const TimestampLayout = "2006-01-02T15:04:05Z"

// Header names shared by outbound requests and inbound notifications.
const (
	HeaderClientID         = "Client-Id"
	HeaderRequestID        = "Request-Id"
	HeaderRequestTimestamp = "Request-Timestamp"
	HeaderSignature        = "Signature"
)

// Components are the signed request attributes.
type Components struct {
	ClientID      string
	RequestID     string
	Timestamp     string
	RequestTarget string
	Digest        string // empty for requests without a body
}

// Digest returns base64(sha256(body)).
func Digest(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// ComponentString renders the canonical newline-joined string that is signed.
func ComponentString(c Components) string {
	var b strings.Builder
	b.WriteString(HeaderClientID + ":" + c.ClientID)
	b.WriteString("\n" + HeaderRequestID + ":" + c.RequestID)
	b.WriteString("\n" + HeaderRequestTimestamp + ":" + c.Timestamp)
	b.WriteString("\nRequest-Target:" + c.RequestTarget)
	if c.Digest != "" {
		b.WriteString("\nDigest:" + c.Digest)
	}
	return b.String()
}

// Sign returns the Signature header value for c. An empty secret is a
// deployment error and panics; an unsigned request must never leave the process.
func Sign(c Components, secret string) string {
	if secret == "" {
		panic("signature: empty secret key")
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ComponentString(c)))
	return Prefix + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether header is the signature of c under secret.
func Verify(c Components, secret, header string) bool {
	if header == "" || secret == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(c, secret)), []byte(header))
}

// NewRequestID returns a fresh Request-Id. Every HTTP attempt gets its own.
func NewRequestID() string {
	return uuid.NewString()
}

// Timestamp formats t for the Request-Timestamp header.
func Timestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(TimestampLayout)
}
