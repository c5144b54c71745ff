// Package slack is the chat platform adapter: request signature
// verification, Events API envelope decoding and a small Web API client.
package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Request headers set by Slack on Events API deliveries.
const (
	HeaderSignature = "X-Slack-Signature"
	HeaderTimestamp = "X-Slack-Request-Timestamp"
	HeaderRetryNum  = "X-Slack-Retry-Num"

	signatureVersion = "v0"
	maxClockSkew     = 5 * time.Minute
)

var (
	ErrMissingSignature = errors.New("missing slack signature headers")
	ErrStaleTimestamp   = errors.New("slack request timestamp outside allowed window")
	ErrInvalidSignature = errors.New("invalid slack signature")
)

// Verifier checks Slack request signatures.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier creates a verifier for the app's signing secret.
func NewVerifier(signingSecret string) *Verifier {
	return &Verifier{secret: []byte(signingSecret), now: time.Now}
}

// Verify checks the v0 HMAC-SHA256 signature of body.
func (v *Verifier) Verify(h http.Header, body []byte) error {
	ts := h.Get(HeaderTimestamp)
	sig := h.Get(HeaderSignature)
	if ts == "" || sig == "" {
		return ErrMissingSignature
	}

	secs, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp %q", ErrInvalidSignature, ts)
	}
	skew := v.now().Sub(time.Unix(secs, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > maxClockSkew {
		return ErrStaleTimestamp
	}

	got, ok := strings.CutPrefix(sig, signatureVersion+"=")
	if !ok {
		return ErrInvalidSignature
	}
	gotMAC, err := hex.DecodeString(got)
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal(gotMAC, v.mac(ts, body)) {
		return ErrInvalidSignature
	}
	return nil
}

func (v *Verifier) mac(ts string, body []byte) []byte {
	m := hmac.New(sha256.New, v.secret)
	m.Write([]byte(signatureVersion + ":" + ts + ":"))
	m.Write(body)
	return m.Sum(nil)
}

// Sign returns the X-Slack-Signature value for body sent at ts.
func Sign(signingSecret, ts string, body []byte) string {
	v := NewVerifier(signingSecret)
	return signatureVersion + "=" + hex.EncodeToString(v.mac(ts, body))
}
