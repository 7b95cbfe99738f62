// Package domain resolves page addresses to the domain identity that time
// is credited to.
package domain

import (
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// hostProfile maps hosts the way browsers serialise them: UTS #46
// non-transitional processing to punycode, without the STD3 and hyphen
// restrictions of DNS registration.
var hostProfile = idna.New(
	idna.MapForLookup(),
	idna.Transitional(false),
	idna.StrictDomainName(false),
	idna.CheckHyphens(false),
	idna.BidiRule(),
)

// FromURL returns the trackable domain for rawURL: the hostname in its
// ASCII (punycode) form with a single leading "www." label removed. IPv6
// literals keep their brackets. Only http and https pages are trackable;
// anything else, including malformed addresses, reports false.
func FromURL(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}

	host, ok := normalizeHost(u.Hostname())
	if !ok {
		return "", false
	}
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return "", false
	}
	return host, true
}

func normalizeHost(host string) (string, bool) {
	if host == "" {
		return "", false
	}
	if strings.Contains(host, ":") {
		return "[" + strings.ToLower(host) + "]", true
	}
	ascii, err := hostProfile.ToASCII(host)
	if err != nil {
		return "", false
	}
	return ascii, true
}

// Set is a lookup of domains that must never be tracked.
type Set map[string]struct{}

// NewSet builds a Set from a list of domains, normalising each the same
// way FromURL does so config entries like "www.Example.com" still match.
func NewSet(domains []string) Set {
	s := make(Set, len(domains))
	for _, d := range domains {
		d = strings.TrimSpace(d)
		if host, ok := normalizeHost(d); ok {
			d = host
		} else {
			d = strings.ToLower(d)
		}
		d = strings.TrimPrefix(d, "www.")
		if d != "" {
			s[d] = struct{}{}
		}
	}
	return s
}

// Contains reports whether d is in the set.
func (s Set) Contains(d string) bool {
	_, ok := s[d]
	return ok
}
