// Package tenantid derives collision-checked tenant identifiers from
// human-supplied company names.
//
// The identifier doubles as the identity-provider realm name, so the
// acceptance rules are stricter than a generic slug: lowercase alphanumerics
// with inner hyphens, 3-20 characters, and never a reserved word. Allocation
// is pure; uniqueness is resolved against an injected existence predicate that
// checks both the local database and the identity provider.
package tenantid

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
)

const (
	// maxAttempts bounds the suffixed-candidate retry loop. Exhausting it
	// falls back to a random identifier unconditionally.
	maxAttempts = 5

	suffixLength   = 3
	fallbackPrefix = "t-"
	fallbackHexLen = 10

	maxLength = 20
)

// idPattern accepts 3-20 chars of lowercase alphanumerics with inner hyphens.
// Leading and trailing hyphens are rejected by construction.
var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,18}[a-z0-9]$`)

var reserved = map[string]struct{}{
	"admin":    {},
	"system":   {},
	"master":   {},
	"keycloak": {},
	"auth":     {},
	"api":      {},
	"www":      {},
	"support":  {},
}

// ExistsFunc reports whether a tenant identifier is already taken.
type ExistsFunc func(ctx context.Context, id string) (bool, error)

// Allocate derives a candidate tenant identifier from a company name.
//
// Candidate order: the normalized name, the normalized name with a random
// 3-character suffix, and finally a fully random identifier when
// normalization yields nothing usable. The result always satisfies IsValid.
func Allocate(companyName string) string {
	normalized := normalize(companyName)
	if IsValid(normalized) {
		return normalized
	}

	withSuffix := appendSuffix(normalized)
	if IsValid(withSuffix) {
		return withSuffix
	}

	return randomID()
}

// EnsureUnique resolves the candidate against the existence predicate.
//
// Taken candidates are retried with fresh random suffixes up to a fixed
// attempt bound; exhausting the bound returns a random identifier without a
// further existence check, so the call never loops unboundedly and never
// returns a colliding derived id.
func EnsureUnique(ctx context.Context, candidate string, exists ExistsFunc) (string, error) {
	if !IsValid(candidate) {
		candidate = randomID()
	}

	base := candidate
	for attempt := 0; attempt < maxAttempts; attempt++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = appendSuffix(base)
	}

	return randomID(), nil
}

// IsValid reports whether id satisfies the acceptance pattern and is not a
// reserved word.
func IsValid(id string) bool {
	if len(id) > maxLength || !idPattern.MatchString(id) {
		return false
	}
	_, isReserved := reserved[id]
	return !isReserved
}

// IsReserved reports whether a company name normalizes to a reserved
// identifier. Callers reject such names up front instead of letting
// Allocate quietly route around them with a suffix.
func IsReserved(companyName string) bool {
	_, isReserved := reserved[normalize(companyName)]
	return isReserved
}

// normalize lowercases the name, replaces runs of non-alphanumerics with a
// single hyphen, and trims leading/trailing hyphens.
func normalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	lastWasSep := true // suppress leading separator
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastWasSep = false
			continue
		}
		if !lastWasSep {
			b.WriteByte('-')
			lastWasSep = true
		}
	}

	return strings.TrimSuffix(b.String(), "-")
}

// appendSuffix attaches a random suffix, truncating the base so the result
// stays within the length bound.
func appendSuffix(base string) string {
	if base == "" {
		return randomID()
	}
	if max := maxLength - suffixLength - 1; len(base) > max {
		base = strings.TrimSuffix(base[:max], "-")
	}
	return base + "-" + randomChars(suffixLength)
}

// randomID returns the unconditional fallback: a fixed-shape random id.
func randomID() string {
	buf := make([]byte, fallbackHexLen/2)
	mustRead(buf)
	return fallbackPrefix + hex.EncodeToString(buf)
}

func randomChars(n int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	buf := make([]byte, n)
	mustRead(buf)
	for i := range buf {
		buf[i] = charset[buf[i]%byte(len(charset))]
	}
	return string(buf)
}

func mustRead(buf []byte) {
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failure means the platform RNG is broken; identifiers
		// must not silently become predictable.
		panic("tenantid: crypto/rand unavailable: " + err.Error())
	}
}
