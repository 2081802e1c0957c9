// Package utils holds URL helpers shared by the HTTP surface and the
// orchestrator.
package utils

import (
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/raysh454/webscan/internal/scanerr"
	"golang.org/x/net/idna"
)

// scanURLPattern is the shape every scan target must have: an http(s)
// scheme followed by a plausible host.
var scanURLPattern = regexp.MustCompile(`(?i)^https?://[^\s/$.?#].[^\s]*$`)

// ValidateScanURL checks raw as a scan target and returns it with
// surrounding whitespace trimmed and otherwise unchanged. The result is
// what the browser navigates to. Failures are *scanerr.ValidationError.
func ValidateScanURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &scanerr.ValidationError{Input: raw, Reason: "url is required"}
	}
	if !scanURLPattern.MatchString(raw) {
		return "", &scanerr.ValidationError{Input: raw, Reason: "expected an absolute http or https url"}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", &scanerr.ValidationError{Input: raw, Reason: err.Error()}
	}
	if u.Hostname() == "" {
		return "", &scanerr.ValidationError{Input: raw, Reason: "missing host"}
	}
	return raw, nil
}

// KeyOptions controls how CacheKey folds URLs together.
type KeyOptions struct {
	// DropTrackingParams removes utm_* and click-id params from the key.
	DropTrackingParams bool
}

var trackingParams = map[string]struct{}{
	"gclid": {}, "fbclid": {}, "msclkid": {}, "mc_cid": {}, "mc_eid": {},
}

// CacheKey returns the cache key for a validated scan URL. Only parts a
// server never sees or treats case-insensitively are folded: scheme and
// host case, IDN hosts, default ports, credentials and the fragment. Path
// and query are kept byte for byte, apart from tracking params when opts
// asks for it. Unparseable input is its own key.
//
//	"HTTPS://Example.COM:443/docs/?b=2&a=1#top" -> "https://example.com/docs/?b=2&a=1"
//	"https://例え.テスト"                         -> "https://xn--r8jz45g.xn--zckzah/"
func CacheKey(raw string, opts KeyOptions) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if puny, err := idna.Lookup.ToASCII(host); err == nil {
		host = puny
	}
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	switch {
	case port != "":
		u.Host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		u.Host = "[" + host + "]"
	default:
		u.Host = host
	}

	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}
	if opts.DropTrackingParams && u.RawQuery != "" {
		u.RawQuery = dropTracking(u.RawQuery)
	}
	return u.String()
}

// dropTracking filters tracking params out of a raw query, leaving the
// order and encoding of the rest untouched.
func dropTracking(rawQuery string) string {
	kept := make([]string, 0, strings.Count(rawQuery, "&")+1)
	for _, part := range strings.Split(rawQuery, "&") {
		name, _, _ := strings.Cut(part, "=")
		if unescaped, err := url.QueryUnescape(name); err == nil {
			name = unescaped
		}
		name = strings.ToLower(name)
		if strings.HasPrefix(name, "utm_") {
			continue
		}
		if _, ok := trackingParams[name]; ok {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, "&")
}
