// Package credential turns the service-account secret into a validated
// ServiceAccount and its PEM private key into an RSA signing key.
package credential

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/nerdherd/push-relay/internal/domain"
)

// Tier names the parsing strategy that produced a ServiceAccount.
type Tier string

const (
	TierStrict    Tier = "strict"
	TierRepaired  Tier = "repaired"
	TierExtracted Tier = "extracted"
)

// attempt is the outcome of one strategy: either an account or the reason it
// gave up. Strategies never panic or return errors; the parser decides.
type attempt struct {
	account *domain.ServiceAccount
	reason  string
}

func failed(reason string) attempt { return attempt{reason: reason} }

type strategy struct {
	tier Tier
	run  func(raw string) attempt
}

// strategies are tried in order; the first success wins.
var strategies = []strategy{
	{TierStrict, parseStrict},
	{TierRepaired, parseRepaired},
	{TierExtracted, parseExtracted},
}

// Parse converts raw secret text into a ServiceAccount. The text has
// historically arrived with broken quoting, so three increasingly lenient
// strategies are attempted before giving up.
func Parse(raw string) (*domain.ServiceAccount, Tier, error) {
	raw = strings.TrimSpace(raw)
	parseErr := &domain.CredentialParseError{}

	for _, s := range strategies {
		a := s.run(raw)
		if a.account != nil {
			return a.account, s.tier, nil
		}
		parseErr.Failures = append(parseErr.Failures, domain.TierFailure{Tier: string(s.tier), Reason: a.reason})
	}
	return nil, "", parseErr
}

func parseStrict(raw string) attempt {
	var sa domain.ServiceAccount
	if err := json.Unmarshal([]byte(raw), &sa); err != nil {
		// The secret may itself be a JSON string holding the document.
		var inner string
		if json.Unmarshal([]byte(raw), &inner) != nil {
			return failed(err.Error())
		}
		if err := json.Unmarshal([]byte(inner), &sa); err != nil {
			return failed(err.Error())
		}
	}
	return finish(&sa)
}

var (
	bareKeyRe   = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	bareValueRe = regexp.MustCompile(`([{,]\s*"[A-Za-z_][A-Za-z0-9_]*"\s*:\s*)([^"'\s{\[,}\]][^,}\]\n]*)`)
	literalRe   = regexp.MustCompile(`^(true|false|null|-?\d+(\.\d+)?([eE][+-]?\d+)?)$`)
)

func parseRepaired(raw string) attempt {
	fixed := bareKeyRe.ReplaceAllString(raw, `$1"$2":`)
	fixed = bareValueRe.ReplaceAllStringFunc(fixed, quoteBareValue)
	if fixed == raw {
		return failed("nothing to repair")
	}

	var sa domain.ServiceAccount
	if err := json.Unmarshal([]byte(fixed), &sa); err != nil {
		return failed(err.Error())
	}
	return finish(&sa)
}

func quoteBareValue(m string) string {
	parts := bareValueRe.FindStringSubmatch(m)
	value := strings.TrimSpace(parts[2])
	if literalRe.MatchString(value) {
		return m
	}
	quoted, _ := json.Marshal(value)
	return parts[1] + string(quoted)
}

// fieldPatterns builds the double-quoted, single-quoted and bare patterns for
// one field, in that order of preference.
func fieldPatterns(field string) []*regexp.Regexp {
	key := `(?:^|[^A-Za-z0-9_])["']?` + regexp.QuoteMeta(field) + `["']?\s*[:=]\s*`
	return []*regexp.Regexp{
		regexp.MustCompile(key + `"((?:[^"\\]|\\.)*)"`),
		regexp.MustCompile(key + `'((?:[^'\\]|\\.)*)'`),
		regexp.MustCompile(key + `([^\s,}'"]+)`),
	}
}

var extractPatterns = map[string][]*regexp.Regexp{
	"project_id":     fieldPatterns("project_id"),
	"client_email":   fieldPatterns("client_email"),
	"private_key":    fieldPatterns("private_key"),
	"private_key_id": fieldPatterns("private_key_id"),
}

func extract(raw, field string) string {
	for _, re := range extractPatterns[field] {
		if m := re.FindStringSubmatch(raw); m != nil {
			return m[1]
		}
	}
	return ""
}

func parseExtracted(raw string) attempt {
	sa := &domain.ServiceAccount{
		ProjectID:    extract(raw, "project_id"),
		ClientEmail:  extract(raw, "client_email"),
		PrivateKey:   extract(raw, "private_key"),
		PrivateKeyID: extract(raw, "private_key_id"),
	}
	return finish(sa)
}

// finish normalizes escaped newlines in the key and applies the invariant
// shared by every tier.
func finish(sa *domain.ServiceAccount) attempt {
	sa.PrivateKey = strings.ReplaceAll(sa.PrivateKey, `\n`, "\n")
	sa.ClientEmail = strings.TrimSpace(sa.ClientEmail)
	if err := sa.Validate(); err != nil {
		return failed(err.Error())
	}
	return attempt{account: sa}
}
