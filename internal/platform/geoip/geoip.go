// Package geoip wraps the MaxMind country database as a pure IP → location
// lookup. Lookup results only annotate audit events; correctness of the
// governance core never depends on them.
package geoip

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Resolver answers coarse country lookups. A nil Resolver is valid and
// resolves nothing, so callers can wire it unconditionally.
type Resolver struct {
	reader *geoip2.Reader
}

// Open loads a MaxMind .mmdb country database. An empty path returns a nil
// Resolver (annotation disabled).
func Open(path string) (*Resolver, error) {
	if path == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &Resolver{reader: reader}, nil
}

// Country returns the ISO country code for an IP, or "" when the resolver is
// disabled, the input is unparseable, or the database has no record.
func (r *Resolver) Country(rawIP string) string {
	if r == nil || r.reader == nil {
		return ""
	}
	ip := net.ParseIP(rawIP)
	if ip == nil {
		return ""
	}
	record, err := r.reader.Country(ip)
	if err != nil {
		return ""
	}
	return record.Country.IsoCode
}

// Close releases the underlying database handle.
func (r *Resolver) Close() {
	if r != nil && r.reader != nil {
		r.reader.Close()
	}
}
