package diag

import (
	"net"
	"regexp"
	"strings"
)

// hostnameRegex matches RFC 1035 style hostnames, including single labels
// like "localhost".
var hostnameRegex = regexp.MustCompile(
	`^(?:[A-Za-z0-9](?:[A-Za-z0-9-]{0,61}[A-Za-z0-9])?\.)*[A-Za-z](?:[A-Za-z0-9-]{0,61}[A-Za-z0-9])?$`)

// ValidHost reports whether host is a plausible, non-malicious hostname or IP
// address. Shell metacharacters and leading dashes are rejected outright since
// hosts are handed to network probes.
func ValidHost(host string) bool {
	if host == "" || strings.HasPrefix(host, "-") {
		return false
	}
	if strings.ContainsAny(host, ";|&`$()<>") {
		return false
	}
	if net.ParseIP(host) != nil {
		return true
	}
	return len(host) <= 253 && hostnameRegex.MatchString(host)
}
