package utils

import (
	"net"
	"strings"
)

func IsIP(target string) bool {
	return net.ParseIP(target) != nil
}

// IsValidDomain accepts hostnames of the form label(.label)+ with the
// character set DNS actually allows. IPs are not valid watch targets.
func IsValidDomain(target string) bool {
	if net.ParseIP(target) != nil {
		return false
	}
	if len(target) == 0 || len(target) > 255 {
		return false
	}
	for _, ch := range target {
		if (ch < 'a' || ch > 'z') && (ch < 'A' || ch > 'Z') && (ch < '0' || ch > '9') && ch != '.' && ch != '-' {
			return false
		}
	}
	if strings.HasPrefix(target, ".") || strings.HasSuffix(target, "-") {
		return false
	}
	return strings.Contains(target, ".")
}

// IsPrivateIP reports whether an address belongs to a reserved range that
// external intelligence sources cannot say anything useful about.
func IsPrivateIP(target string) bool {
	ip := net.ParseIP(target)
	if ip == nil {
		return false
	}
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}
