package message

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	publicIPv4 = `(?:[1-9]\d?|1\d\d|2[01]\d|22[0-3])(?:\.(?:1?\d{1,2}|2[0-4]\d|25[0-5])){2}\.(?:[1-9]\d?|1\d\d|2[0-4]\d|25[0-4])`
	hostLabel  = `(?:[a-z\x{00a1}-\x{ffff}0-9]-*)*[a-z\x{00a1}-\x{ffff}0-9]+`
	dnsName    = hostLabel + `(?:\.` + hostLabel + `)*\.[a-z\x{00a1}-\x{ffff}]{2,}`
)

// the host is captured so reserved IPv4 ranges can be rejected afterwards
var ctaURLPattern = regexp.MustCompile(
	`(?i)^(?:(?:https?|ftp):)?//` +
		`(?:\S+(?::\S*)?@)?` +
		`(` + publicIPv4 + `|` + dnsName + `)` +
		`(?::\d{2,5})?` +
		`(?:[/?#]\S*)?$`,
)

var ipv4Shape = regexp.MustCompile(`^\d{1,3}(?:\.\d{1,3}){3}$`)

// ValidCTAURL reports whether u may be used as a CTA link: an optional http, https or ftp
// scheme, a public IPv4 address or DNS name with a TLD, optional port and path
func ValidCTAURL(u string) bool {
	m := ctaURLPattern.FindStringSubmatch(u)
	if m == nil {
		return false
	}
	host := m[1]
	if ipv4Shape.MatchString(host) {
		return !reservedIPv4(host)
	}
	return true
}

func reservedIPv4(host string) bool {
	octets := strings.SplitN(host, ".", 4)
	a, _ := strconv.Atoi(octets[0])
	b, _ := strconv.Atoi(octets[1])
	switch {
	case a == 10, a == 127:
		return true
	case a == 169 && b == 254:
		return true
	case a == 192 && b == 168:
		return true
	case a == 172 && b >= 16 && b <= 31:
		return true
	}
	return false
}
