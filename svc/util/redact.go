package util

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
)

// RedactIP masks a client address before it reaches a log line. IPv4
// keeps the /24, IPv6 keeps the first 32 bits, and anything that does
// not parse becomes a short stable hash.
func RedactIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	parsed := net.ParseIP(addr)
	if parsed == nil {
		sum := sha256.Sum256([]byte(addr))
		return "hash:" + hex.EncodeToString(sum[:8])
	}
	if v4 := parsed.To4(); v4 != nil {
		v4[3] = 0
		return v4.String()
	}
	v6 := parsed.To16()
	for i := 4; i < 16; i++ {
		v6[i] = 0
	}
	return v6.String()
}
