package utils

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// proxyHeaders are consulted in order when the origin sits behind a
// trusted proxy or tunnel.
var proxyHeaders = []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"}

// ParseAddr accepts "ip", "ip:port" and "[v6]:port". IPv4-mapped IPv6
// addresses are unmapped so they match IPv4 prefixes.
func ParseAddr(s string) (netip.Addr, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Addr{}, false
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	addr, err := netip.ParseAddr(strings.Trim(s, "[]"))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

// ClientAddr resolves the client address of r. Proxy headers are only
// trusted when trustProxy is set; X-Forwarded-For contributes its
// left-most entry.
func ClientAddr(r *http.Request, trustProxy bool) (netip.Addr, bool) {
	if trustProxy {
		for _, h := range proxyHeaders {
			v := r.Header.Get(h)
			if h == "X-Forwarded-For" {
				v, _, _ = strings.Cut(v, ",")
			}
			if addr, ok := ParseAddr(v); ok {
				return addr, true
			}
		}
	}
	return ParseAddr(r.RemoteAddr)
}

// ClientIP is ClientAddr as a string, or RemoteAddr verbatim when it does
// not parse. Used as a rate limit key and in logs.
func ClientIP(r *http.Request, trustProxy bool) string {
	if addr, ok := ClientAddr(r, trustProxy); ok {
		return addr.String()
	}
	return r.RemoteAddr
}

// CIDRSet matches addresses against prefixes. A bare IP is a full-length
// prefix.
type CIDRSet struct {
	prefixes []netip.Prefix
}

// ParseCIDRSet parses every entry and reports the first invalid one.
func ParseCIDRSet(list []string) (*CIDRSet, error) {
	s := &CIDRSet{}
	for _, raw := range list {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if p, err := netip.ParsePrefix(entry); err == nil {
			s.prefixes = append(s.prefixes, p.Masked())
			continue
		}
		addr, ok := ParseAddr(entry)
		if !ok {
			return nil, fmt.Errorf("invalid ip or cidr %q", entry)
		}
		s.prefixes = append(s.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return s, nil
}

func (s *CIDRSet) Len() int { return len(s.prefixes) }

func (s *CIDRSet) Contains(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range s.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
