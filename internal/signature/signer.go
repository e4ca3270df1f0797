package signature

import (
	"net/http"
	"time"
)

// Signer stamps outbound requests with the gateway authentication headers.
type Signer struct {
	clientID string
	secret   string
	now      func() time.Time
	newID    func() string
}

// NewSigner creates a Signer. It panics when either credential is empty.
func NewSigner(clientID, secret string) *Signer {
	if clientID == "" || secret == "" {
		panic("signature: client id and secret key are required")
	}
	return &Signer{clientID: clientID, secret: secret, now: time.Now, newID: NewRequestID}
}

// Sign sets Client-Id, Request-Id, Request-Timestamp and Signature on req.
// body must be the exact bytes sent on the wire; nil means no Digest component.
func (s *Signer) Sign(req *http.Request, body []byte) Components {
	c := Components{
		ClientID:      s.clientID,
		RequestID:     s.newID(),
		Timestamp:     Timestamp(s.now()),
		RequestTarget: req.URL.EscapedPath(),
	}
	if len(body) > 0 {
		c.Digest = Digest(body)
	}
	req.Header.Set(HeaderClientID, c.ClientID)
	req.Header.Set(HeaderRequestID, c.RequestID)
	req.Header.Set(HeaderRequestTimestamp, c.Timestamp)
	req.Header.Set(HeaderSignature, Sign(c, s.secret))
	return c
}

// VerifyRequest checks the signature headers of an inbound notification whose
// raw body is body and whose configured path is target.
func (s *Signer) VerifyRequest(h http.Header, target string, body []byte) bool {
	if h.Get(HeaderClientID) != s.clientID {
		return false
	}
	c := Components{
		ClientID:      s.clientID,
		RequestID:     h.Get(HeaderRequestID),
		Timestamp:     h.Get(HeaderRequestTimestamp),
		RequestTarget: target,
	}
	if len(body) > 0 {
		c.Digest = Digest(body)
	}
	return Verify(c, s.secret, h.Get(HeaderSignature))
}
