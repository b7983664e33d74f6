package geoip

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResolverWithoutPath(t *testing.T) {
	r, err := NewResolver("  ")
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestNilResolverIsUnavailable(t *testing.T) {
	var r *Resolver
	_, err := r.TimeZone("8.8.8.8")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NoError(t, r.Close())
}

func TestNewResolverMissingFile(t *testing.T) {
	_, err := NewResolver("/nonexistent/GeoLite2-City.mmdb")
	assert.Error(t, err)
}

func TestRoutable(t *testing.T) {
	cases := map[string]bool{
		"8.8.8.8":     true,
		"2001:db8::1": true,
		"127.0.0.1":   false,
		"10.1.2.3":    false,
		"192.168.0.9": false,
		"fe80::1":     false,
		"::":          false,
	}
	for ip, want := range cases {
		assert.Equal(t, want, routable(net.ParseIP(ip)), ip)
	}
}

func TestZoneCache(t *testing.T) {
	r := &Resolver{}
	first, err := r.zone("Europe/Paris")
	require.NoError(t, err)
	second, err := r.zone(" Europe/Paris ")
	require.NoError(t, err)
	assert.Same(t, first, second)

	loc, err := r.zone("")
	assert.NoError(t, err)
	assert.Nil(t, loc)

	_, err = r.zone("Mars/Olympus")
	assert.Error(t, err)
}
