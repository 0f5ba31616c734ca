// Package privacy derives pseudonymous, tenant-scoped identifiers from raw
// client IP addresses. Hashes are deterministic per (tenant, ip), carry no
// stored mapping back to the raw address, and differ across tenants for the
// same address so one tenant's data can never be correlated with another's.
package privacy

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/netip"

	dErrors "custodian/pkg/domain-errors"
)

const (
	ipv4MaskBits = 24
	ipv6MaskBits = 64
)

// Hasher computes tenant-scoped IP hashes keyed by a process-level secret.
// The secret never leaves the process; rotating it invalidates every hash.
type Hasher struct {
	secret []byte
}

// NewHasher builds a Hasher from the process secret.
func NewHasher(secret []byte) (*Hasher, error) {
	if len(secret) == 0 {
		return nil, dErrors.New(dErrors.CodeConfiguration, "process secret is required")
	}
	return &Hasher{secret: secret}, nil
}

// HashIP returns the hex-encoded HMAC-SHA256 of the canonical address form
// under a per-tenant derived salt. Equivalent textual representations of the
// same address hash identically; distinct tenants never share a hash space.
func (h *Hasher) HashIP(tenantID, rawIP string) (string, error) {
	addr, err := parseAddr(rawIP)
	if err != nil {
		return "", err
	}

	salt := h.tenantSalt(tenantID)
	mac := hmac.New(sha256.New, salt)
	mac.Write([]byte(addr.String()))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// tenantSalt derives the per-tenant HMAC key. Derived on demand, never stored.
func (h *Hasher) tenantSalt(tenantID string) []byte {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte("tenant:" + tenantID))
	return mac.Sum(nil)
}

// MaskIP truncates an address to its coarse network (/24 for IPv4, /64 for
// IPv6) and renders it as network/prefix. Suitable for display; carries far
// less entropy than a hash and is not a correlation key.
func MaskIP(rawIP string) (string, error) {
	addr, err := parseAddr(rawIP)
	if err != nil {
		return "", err
	}

	bits := ipv6MaskBits
	if addr.Is4() {
		bits = ipv4MaskBits
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "mask ip")
	}
	return prefix.String(), nil
}

// parseAddr validates and canonicalizes an IP literal. IPv4-mapped IPv6
// addresses collapse to their IPv4 form so both spellings share one identity.
func parseAddr(rawIP string) (netip.Addr, error) {
	if rawIP == "" {
		return netip.Addr{}, dErrors.New(dErrors.CodeValidation, "ip address is required")
	}
	addr, err := netip.ParseAddr(rawIP)
	if err != nil {
		return netip.Addr{}, dErrors.Newf(dErrors.CodeValidation, "invalid ip address %q", rawIP)
	}
	return addr.Unmap(), nil
}
