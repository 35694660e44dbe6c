// Package geoip resolves IP addresses to map anchors using a MaxMind
// database.
package geoip

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/biter777/countries"
	"github.com/oschwald/maxminddb-golang"

	"github.com/sudorandom/mandala-map/pkg/overlay"
)

var (
	ErrInvalidIP = errors.New("geoip: invalid ip")
	ErrNotFound  = errors.New("geoip: no location for ip")
)

// Location is the result of a lookup.
type Location struct {
	Anchor  overlay.LngLat
	Country string // ISO 3166-1 alpha-2
	City    string
}

// Locator is anything that can place an IP on the map.
type Locator interface {
	Locate(ip string) (Location, error)
}

type record struct {
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	Location struct {
		Latitude  *float64 `maxminddb:"latitude"`
		Longitude *float64 `maxminddb:"longitude"`
	} `maxminddb:"location"`
}

type Resolver struct {
	db *maxminddb.Reader
}

// Open memory-maps a GeoLite2-City compatible database.
func Open(path string) (*Resolver, error) {
	db, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database %s: %w", path, err)
	}
	return &Resolver{db: db}, nil
}

// FromBytes reads a database already in memory.
func FromBytes(b []byte) (*Resolver, error) {
	db, err := maxminddb.FromBytes(b)
	if err != nil {
		return nil, fmt.Errorf("read geoip database: %w", err)
	}
	return &Resolver{db: db}, nil
}

func (r *Resolver) Locate(ip string) (Location, error) {
	addr := net.ParseIP(strings.TrimSpace(ip))
	if addr == nil {
		return Location{}, fmt.Errorf("%w: %q", ErrInvalidIP, ip)
	}
	var rec record
	if err := r.db.Lookup(addr, &rec); err != nil {
		return Location{}, fmt.Errorf("lookup %s: %w", ip, err)
	}
	if rec.Location.Latitude == nil || rec.Location.Longitude == nil {
		return Location{}, fmt.Errorf("%w: %s", ErrNotFound, ip)
	}
	return Location{
		Anchor:  overlay.LngLat{Lng: *rec.Location.Longitude, Lat: *rec.Location.Latitude},
		Country: strings.ToUpper(rec.Country.ISOCode),
		City:    rec.City.Names["en"],
	}, nil
}

func (r *Resolver) Close() error {
	return r.db.Close()
}

// CountryName returns a short display name for an ISO country code, or the
// code itself when it is unknown.
func CountryName(cc string) string {
	if cc == "" {
		return ""
	}
	name := countries.ByName(cc).String()
	if name == countries.Unknown.String() {
		return cc
	}
	if idx := strings.Index(name, " ("); idx != -1 {
		name = name[:idx]
	}
	return name
}
