package schema

import "strings"

// AnonymizeIPv4 masks the final octet of a dotted IPv4 address, e.g.
// "192.168.1.50" -> "192.168.1.XXX". Non-IPv4 input (including IPv6 and
// malformed strings) is returned unchanged, since the invariant in
// spec.md §8 only constrains dotted-IPv4 input.
func AnonymizeIPv4(ip string) string {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return ip
	}
	for _, p := range parts {
		if p == "" {
			return ip
		}
	}
	return parts[0] + "." + parts[1] + "." + parts[2] + ".XXX"
}
