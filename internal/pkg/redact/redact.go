// redact masks secrets before they reach logs.
package redact

import (
	"net/url"
	"strings"
)

// Email keeps the first two runes of the local part and the domain.
func Email(s string) string {
	parts := strings.Split(s, "@")
	if len(parts) != 2 {
		return "***"
	}

	local, domain := []rune(parts[0]), parts[1]
	if len(local) > 2 {
		return string(local[:2]) + "***@" + domain
	}

	return "***@" + domain
}

// URI strips credentials and query parameters from a connection string,
// leaving scheme, hosts and path. Unparsable input is fully masked.
func URI(s string) string {
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "***"
	}

	if u.User != nil {
		u.User = url.User("redacted")
	}
	u.RawQuery = ""
	u.Fragment = ""

	return u.String()
}
