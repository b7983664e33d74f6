package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"plantscan/internal/clock"
	"plantscan/internal/infra/geoip"
)

// TimezoneHeader carries the client's IANA zone name, e.g. "Europe/Paris".
const TimezoneHeader = "X-Timezone"

// Timezone stores the location day keys are computed in. The client header wins,
// then a GeoIP lookup of the client address, then fallback.
func Timezone(fallback *time.Location, resolver geoip.LocationResolver, logger zerolog.Logger) func(http.Handler) http.Handler {
	if fallback == nil {
		fallback = time.UTC
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loc := resolveLocation(r, resolver, logger)
			if loc == nil {
				loc = fallback
			}
			next.ServeHTTP(w, r.WithContext(clock.WithLocation(r.Context(), loc)))
		})
	}
}

func resolveLocation(r *http.Request, resolver geoip.LocationResolver, logger zerolog.Logger) *time.Location {
	if name := strings.TrimSpace(r.Header.Get(TimezoneHeader)); name != "" {
		loc, err := time.LoadLocation(name)
		if err == nil {
			return loc
		}
		logger.Debug().Str("timezone", name).Err(err).Msg("ignoring unknown client time zone")
	}
	if resolver == nil {
		return nil
	}
	ip := ClientIP(r)
	if ip == "" {
		return nil
	}
	loc, err := resolver.TimeZone(ip)
	if err != nil {
		logger.Debug().Str("ip", ip).Err(err).Msg("geoip time zone lookup failed")
		return nil
	}
	return loc
}
