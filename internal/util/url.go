package util

import (
	"net/url"
	"strings"
)

// mediaDomains lists hosts where NormalizeMediaURL should force HTTPS.
var mediaDomains = []string{
	"twimg.com",
	"pbs.twimg.com",
	"video.twimg.com",
	"abs.twimg.com",
}

func isMediaDomain(host string) bool {
	for _, d := range mediaDomains {
		if host == d {
			return true
		}
	}
	return false
}

// NormalizeMediaURL trims the URL and upgrades known media CDN hosts to https.
// Other URLs, including unparseable ones, are returned trimmed but otherwise untouched.
func NormalizeMediaURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	if !isMediaDomain(parsedURL.Hostname()) {
		return rawURL
	}

	parsedURL.Scheme = "https"
	return parsedURL.String()
}
