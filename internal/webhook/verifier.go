// Package webhook authenticates and decodes provider webhook deliveries.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// SignatureHeader carries base64(HMAC-SHA256(key, body)).
const SignatureHeader = "x-xero-signature"

// Verifier checks delivery signatures against the shared webhook key.
type Verifier struct {
	key []byte
}

func NewVerifier(key string) *Verifier {
	return &Verifier{key: []byte(key)}
}

// Configured reports whether a key is set. An unconfigured verifier rejects everything.
func (v *Verifier) Configured() bool {
	return v != nil && len(v.key) > 0
}

// Sign returns the signature expected for payload.
func (v *Verifier) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, v.key)
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches payload. It fails closed: a
// missing key, an empty signature or any panic while comparing yields false.
func (v *Verifier) Verify(signature string, payload []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	if !v.Configured() {
		return false
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}
	return hmac.Equal([]byte(signature), []byte(v.Sign(payload)))
}
