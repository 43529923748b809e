package util

import (
	"net"
	"net/http"
	"strings"
)

// TrustedProxies is the set of proxy addresses whose forwarded headers are
// believed. The relay frequently sits behind a tunnel or reverse proxy, and
// both rate limiting and audit alerting key on the real scan-page caller,
// so header trust has to be explicit.
type TrustedProxies struct {
	blocks []*net.IPNet
}

// NewTrustedProxies parses a list of CIDR blocks or single addresses.
// An empty list yields nil, which means no proxy is trusted.
func NewTrustedProxies(entries []string) (*TrustedProxies, error) {
	var blocks []*net.IPNet
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		block, err := parseProxyEntry(entry)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	if len(blocks) == 0 {
		return nil, nil
	}
	return &TrustedProxies{blocks: blocks}, nil
}

func parseProxyEntry(entry string) (*net.IPNet, error) {
	if strings.Contains(entry, "/") {
		_, block, err := net.ParseCIDR(entry)
		return block, err
	}
	ip := net.ParseIP(entry)
	if ip == nil {
		return nil, &net.ParseError{Type: "IP address", Text: entry}
	}
	bits := 32
	if ip.To4() == nil {
		bits = 128
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
}

// Contains reports whether ip falls inside any trusted block. A nil
// receiver trusts nothing.
func (t *TrustedProxies) Contains(ip net.IP) bool {
	if t == nil || ip == nil {
		return false
	}
	for _, block := range t.blocks {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP resolves the address a request originated from. Forwarded
// headers count only when the direct peer is a trusted proxy; otherwise a
// scan-page visitor could spoof X-Forwarded-For and dodge the send limiter.
func ClientIP(r *http.Request, trusted *TrustedProxies) string {
	peer := parseRemoteIP(r.RemoteAddr)
	if peer == nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	if !trusted.Contains(peer) {
		return peer.String()
	}

	if hops := forwardedHops(r.Header.Get("X-Forwarded-For")); len(hops) > 0 {
		// Walk right to left; the first hop outside the trusted set is
		// the caller. A chain that is trusted end to end keeps its
		// leftmost entry.
		for i := len(hops) - 1; i >= 0; i-- {
			if !trusted.Contains(hops[i]) {
				return hops[i].String()
			}
		}
		return hops[0].String()
	}

	if real := parseIP(r.Header.Get("X-Real-IP")); real != nil {
		return real.String()
	}
	return peer.String()
}

func forwardedHops(header string) []net.IP {
	var hops []net.IP
	for _, part := range strings.Split(header, ",") {
		if ip := parseIP(part); ip != nil {
			hops = append(hops, ip)
		}
	}
	return hops
}

func parseRemoteIP(addr string) net.IP {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return parseIP(host)
	}
	return parseIP(addr)
}

func parseIP(raw string) net.IP {
	return net.ParseIP(strings.TrimSpace(raw))
}
