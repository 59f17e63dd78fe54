package discovery

import (
	"strings"

	"rootsignal.dev/scout/common"
	"rootsignal.dev/scout/internal/scout/domain"
)

var socialHosts = map[string]bool{
	"reddit.com":    true,
	"twitter.com":   true,
	"x.com":         true,
	"instagram.com": true,
	"facebook.com":  true,
	"tiktok.com":    true,
}

// SourceTypeFromURL classifies a URL by host, matching sources::SourceType::from_url.
func SourceTypeFromURL(rawURL string) domain.SourceType {
	host := strings.ToLower(rawURL)
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimPrefix(host, "www.")
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	for social := range socialHosts {
		if host == social || strings.HasSuffix(host, "."+social) {
			return domain.SourceTypeSocial
		}
	}
	return domain.SourceTypeWeb
}

// CanonicalValueFromURL normalizes a URL for canonical-key derivation:
// scheme and "www." stripped, trailing slash removed, lowercased.
func CanonicalValueFromURL(rawURL string) string {
	v := strings.ToLower(strings.TrimSpace(rawURL))
	v = strings.TrimPrefix(v, "https://")
	v = strings.TrimPrefix(v, "http://")
	v = strings.TrimPrefix(v, "www.")
	return strings.TrimSuffix(v, "/")
}

// MakeCanonicalKey builds the stable MERGE identity for a Source: city +
// source type + normalized value, slugified. Idempotent discovery relies on
// this being deterministic for the same (city, type, value) triple.
func MakeCanonicalKey(city string, sourceType domain.SourceType, value string) string {
	citySlug, _ := common.Slugify(city, "region")
	valueSlug, _ := common.Slugify(value, string(sourceType))
	return citySlug + ":" + string(sourceType) + ":" + valueSlug
}
