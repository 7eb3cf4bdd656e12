package util

import (
	"regexp"
	"strings"
	"unicode"
)

// allowedIPPattern only checks the shape of an IPv4 CIDR token. Octets are
// limited to 1-3 digits without a 0-255 range check, so 999.1.1.1/24 passes.
var allowedIPPattern = regexp.MustCompile(`^([0-9]{1,3}\.){3}[0-9]{1,3}/([0-9]|[1-2][0-9]|3[0-2])$`)

// ValidateAllowedIP reports whether token looks like A.B.C.D/P with P in [0, 32]
func ValidateAllowedIP(token string) bool {
	return allowedIPPattern.MatchString(token)
}

// SplitAllowedIPs strips all whitespace from list and splits it on commas.
// Empty tokens are kept so that validation can reject them.
func SplitAllowedIPs(list string) []string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, list)
	return strings.Split(stripped, ",")
}

// ValidateAllowedIPList validates a comma separated list of allowed ips.
// The whole list is rejected if any token is invalid.
func ValidateAllowedIPList(list string) bool {
	tokens := SplitAllowedIPs(list)
	if len(tokens) == 0 {
		return false
	}
	for _, token := range tokens {
		if !ValidateAllowedIP(token) {
			return false
		}
	}
	return true
}
