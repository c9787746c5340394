// Package urlclean normalises saved URLs so that trivially different
// spellings of the same page compare equal.
package urlclean

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Cleanup rewrites raw to a canonical form: https scheme, no "www." prefix,
// blogspot country domains collapsed to blogspot.com, no query or fragment,
// and no trailing index page or slash. Input without a host is returned
// unchanged.
func Cleanup(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}

	host := strings.TrimPrefix(u.Hostname(), "www.")
	return "https://" + fixupBlogspot(host) + cleanupPath(u.EscapedPath())
}

// Site returns the registrable domain of raw, e.g. "bbc.co.uk" for
// "https://www.news.bbc.co.uk/x".
func Site(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse url: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("url %q has no host", raw)
	}
	site, err := publicsuffix.EffectiveTLDPlusOne(strings.ToLower(host))
	if err != nil {
		return "", fmt.Errorf("failed to find site of %q: %w", host, err)
	}
	return site, nil
}

// Hosts returns the hosts worth trying when looking raw up by domain: the
// host without "www." first, then its registrable domain when that differs.
func Hosts(raw string) []string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	hosts := []string{host}
	if site, err := Site(raw); err == nil && site != host {
		hosts = append(hosts, site)
	}
	return hosts
}

func fixupBlogspot(host string) string {
	parts := strings.Split(host, ".blogspot.")
	if len(parts) == 2 {
		return parts[0] + ".blogspot.com"
	}
	return host
}

func cleanupPath(path string) string {
	path = trimAllSuffix(path, "index.html")
	path = trimAllSuffix(path, "index.php")
	return strings.TrimRight(path, "/")
}

func trimAllSuffix(s, suffix string) string {
	for strings.HasSuffix(s, suffix) {
		s = strings.TrimSuffix(s, suffix)
	}
	return s
}
