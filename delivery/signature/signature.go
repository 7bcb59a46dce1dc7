package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

const (
	// Header is the request header carrying the payload signature
	Header = "X-Hub-Signature-256"

	// Prefix identifies the digest algorithm in the header value
	Prefix = "sha256="
)

/* Sign computes the HMAC-SHA256 signature of the raw payload bytes
 * and returns it in the form "sha256=<hex>". The receiver must
 * recompute over byte-identical content, so callers sign the exact
 * bytes that go on the wire.
 *
 * An empty secret disables signing and returns "". This is an
 * insecure default intended for local development only.
 */
func Sign(payload []byte, secret string) string {
	if secret == "" {
		return ""
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return Prefix + hex.EncodeToString(mac.Sum(nil))
}

/* Verify checks a signature against the payload using a constant-time
 * comparison. The "sha256=" prefix on the wire value is optional for
 * interoperability with providers that omit it.
 *
 * An empty secret makes verification a no-op that always passes,
 * mirroring the insecure signing default.
 */
func Verify(payload []byte, sig, secret string) bool {
	if secret == "" {
		return true
	}
	if sig == "" {
		return false
	}

	sig = strings.TrimPrefix(sig, Prefix)

	given, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := mac.Sum(nil)

	return subtle.ConstantTimeCompare(given, expected) == 1
}
