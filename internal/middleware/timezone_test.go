package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"plantscan/internal/clock"
)

type fakeResolver struct {
	loc  *time.Location
	err  error
	seen string
}

func (f *fakeResolver) TimeZone(ip string) (*time.Location, error) {
	f.seen = ip
	return f.loc, f.err
}


func TestTimezone(t *testing.T) {
	fallback := time.FixedZone("fallback", 2*3600)
	geo := time.FixedZone("geo", -5*3600)

	tests := []struct {
		name     string
		header   string
		resolver *fakeResolver
		want     string
	}{
		{name: "client header", header: "UTC", resolver: &fakeResolver{loc: geo}, want: "UTC"},
		{name: "unknown header falls through to geoip", header: "Mars/Olympus", resolver: &fakeResolver{loc: geo}, want: "geo"},
		{name: "geoip", resolver: &fakeResolver{loc: geo}, want: "geo"},
		{name: "geoip error uses fallback", resolver: &fakeResolver{err: errors.New("miss")}, want: "fallback"},
		{name: "geoip without zone uses fallback", resolver: &fakeResolver{}, want: "fallback"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			h := Timezone(fallback, tc.resolver, zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = clock.LocationFromContext(r.Context(), nil).String()
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "203.0.113.9:5555"
			if tc.header != "" {
				req.Header.Set(TimezoneHeader, tc.header)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTimezoneWithoutResolver(t *testing.T) {
	var got *time.Location
	h := Timezone(nil, nil, zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = clock.LocationFromContext(r.Context(), nil)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, time.UTC, got)
}
