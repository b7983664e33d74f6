package geoip

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/oschwald/geoip2-golang"
)

// ErrUnavailable is returned when the resolver is not initialized.
var ErrUnavailable = errors.New("geoip resolver unavailable")

// LocationResolver maps client IPs to the time zone used for day keys.
type LocationResolver interface {
	TimeZone(ip string) (*time.Location, error)
}

// Resolver looks up time zones in a MaxMind GeoIP2/GeoLite2 City database.
type Resolver struct {
	reader *geoip2.Reader
	zones  sync.Map // IANA name -> *time.Location
}

// NewResolver opens the database at path. An empty path disables lookups and
// returns a nil resolver.
func NewResolver(path string) (*Resolver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database: %w", err)
	}
	return &Resolver{reader: reader}, nil
}

// TimeZone returns the IANA location recorded for ip. A nil location with a nil
// error means there is nothing to go on: a private or loopback address, or no
// zone in the database.
func (r *Resolver) TimeZone(ip string) (*time.Location, error) {
	if r == nil || r.reader == nil {
		return nil, ErrUnavailable
	}
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return nil, fmt.Errorf("geoip: invalid ip %q", ip)
	}
	if !routable(parsed) {
		return nil, nil
	}
	record, err := r.reader.City(parsed)
	if err != nil {
		return nil, fmt.Errorf("geoip: lookup city: %w", err)
	}
	if record == nil {
		return nil, nil
	}
	return r.zone(record.Location.TimeZone)
}

// zone caches LoadLocation, which reads tzdata on every call.
func (r *Resolver) zone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	if loc, ok := r.zones.Load(name); ok {
		return loc.(*time.Location), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("geoip: load zone %q: %w", name, err)
	}
	r.zones.Store(name, loc)
	return loc, nil
}

func routable(ip net.IP) bool {
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified())
}

// Close closes the underlying database reader.
func (r *Resolver) Close() error {
	if r == nil || r.reader == nil {
		return nil
	}
	return r.reader.Close()
}

var _ LocationResolver = (*Resolver)(nil)
