// Package geo resolves client IP addresses to ISO country codes from a
// MaxMind (GeoLite2 / GeoIP2 / DB-IP compatible) database.
package geo

import (
	"context"
	"fmt"
	"net"

	"github.com/oschwald/maxminddb-golang"
)

type countryRecord struct {
	Country struct {
		IsoCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	RegisteredCountry struct {
		IsoCode string `maxminddb:"iso_code"`
	} `maxminddb:"registered_country"`
}

// MaxMind looks up countries in a memory-mapped mmdb file.
type MaxMind struct {
	reader *maxminddb.Reader
}

// Open memory-maps the database at path. Call Close to release it.
func Open(path string) (*MaxMind, error) {
	reader, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geo: open %s: %w", path, err)
	}
	return &MaxMind{reader: reader}, nil
}

// FromBytes builds a resolver from an in-memory database image.
func FromBytes(b []byte) (*MaxMind, error) {
	reader, err := maxminddb.FromBytes(b)
	if err != nil {
		return nil, fmt.Errorf("geo: load database: %w", err)
	}
	return &MaxMind{reader: reader}, nil
}

// Country returns the ISO code for ip. An address that is unparsable or
// absent from the database yields "" without an error.
func (m *MaxMind) Country(_ context.Context, ip string) (string, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", nil
	}

	var rec countryRecord
	_, ok, err := m.reader.LookupNetwork(parsed, &rec)
	if err != nil {
		return "", fmt.Errorf("geo: lookup %s: %w", ip, err)
	}
	if !ok {
		return "", nil
	}
	if rec.Country.IsoCode != "" {
		return rec.Country.IsoCode, nil
	}
	return rec.RegisteredCountry.IsoCode, nil
}

// DatabaseType reports the metadata type string of the opened database.
func (m *MaxMind) DatabaseType() string {
	return m.reader.Metadata.DatabaseType
}

func (m *MaxMind) Close() error {
	return m.reader.Close()
}
