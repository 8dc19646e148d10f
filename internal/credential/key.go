package credential

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/nerdherd/push-relay/internal/domain"
)

var (
	pemBodyRe     = regexp.MustCompile(`(?s)BEGIN[^-]*-----(.*?)-----END`)
	nonBase64Re   = regexp.MustCompile(`[^A-Za-z0-9+/=_-]`)
	markerWords   = []string{"BEGIN", "PRIVATE", "KEY", "END", "-"}
	base64URLRepl = strings.NewReplacer("-", "+", "_", "/")
	escapeRepl    = strings.NewReplacer(`\r`, "", `\n`, "", `\t`, "")
)

// Sanitize reduces a PEM-ish string to standard base64 text. Secrets copied
// through dashboards lose their line structure, gain stray quotes or escape
// sequences, and sometimes carry half of a boundary marker.
func Sanitize(pemText string) string {
	body := pemText
	if m := pemBodyRe.FindStringSubmatch(pemText); m != nil {
		body = m[1]
	}

	// Escaped whitespace would otherwise leave stray letters behind.
	body = escapeRepl.Replace(body)
	body = nonBase64Re.ReplaceAllString(body, "")
	// A framed body still carries marker leftovers when a boundary line had
	// extra dashes or a split keyword.
	body = trimMarkerWords(body)
	return base64URLRepl.Replace(body)
}

// trimMarkerWords removes marker fragments glued to either end of the key
// body when the boundary lines were too damaged to match.
func trimMarkerWords(s string) string {
	for changed := true; changed; {
		changed = false
		for _, w := range markerWords {
			if strings.HasPrefix(s, w) {
				s = strings.TrimPrefix(s, w)
				changed = true
			}
			if strings.HasSuffix(s, w) {
				s = strings.TrimSuffix(s, w)
				changed = true
			}
		}
	}
	return s
}

// DecodeKeyMaterial decodes sanitized base64, retrying once with the padding
// the secret store tends to strip.
func DecodeKeyMaterial(b64 string) ([]byte, error) {
	der, err := base64.StdEncoding.DecodeString(b64)
	if err == nil {
		return der, nil
	}

	trimmed := strings.TrimRight(b64, "=")
	if rem := len(trimmed) % 4; rem != 0 {
		trimmed += strings.Repeat("=", 4-rem)
	}
	der, retryErr := base64.StdEncoding.DecodeString(trimmed)
	if retryErr != nil {
		return nil, fmt.Errorf("decode base64: %w", errors.Join(err, retryErr))
	}
	return der, nil
}

// ImportKey parses a PKCS#8 RSA private key out of PEM-shaped text. The key
// is only ever handed to the RS256 signer.
func ImportKey(pemText string) (*rsa.PrivateKey, error) {
	b64 := Sanitize(pemText)
	if b64 == "" {
		return nil, &domain.KeyImportError{Step: "sanitize", Err: errors.New("no base64 key material found")}
	}

	der, err := DecodeKeyMaterial(b64)
	if err != nil {
		return nil, &domain.KeyImportError{Step: "decode", Err: err}
	}

	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, &domain.KeyImportError{Step: "pkcs8", Err: err}
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, &domain.KeyImportError{Step: "pkcs8", Err: fmt.Errorf("unsupported key type %T", parsed)}
	}
	return key, nil
}
