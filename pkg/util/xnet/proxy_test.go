package xnet

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrustedProxies_ClientIP(t *testing.T) {
	proxies, err := NewTrustedProxies("10.0.0.0/8", "192.168.1.1")
	require.NoError(t, err)

	tests := []struct {
		name   string
		remote string
		chain  []string
		want   string
	}{
		{"untrusted peer ignores header", "203.0.113.5:443", []string{"1.1.1.1"}, "203.0.113.5"},
		{"trusted peer uses chain", "10.0.0.2:443", []string{"198.51.100.7"}, "198.51.100.7"},
		{"skips trusted hops", "10.0.0.2:443", []string{"198.51.100.7", "192.168.1.1", "10.1.1.1"}, "198.51.100.7"},
		{"spoofed left entry ignored", "10.0.0.2:443", []string{"6.6.6.6", "198.51.100.7"}, "198.51.100.7"},
		{"all trusted", "10.0.0.2:443", []string{"10.0.0.9", "10.0.0.8"}, "10.0.0.9"},
		{"empty chain", "10.0.0.2:443", nil, "10.0.0.2"},
		{"garbage stops at last trusted hop", "10.0.0.2:443", []string{"junk", "10.0.0.3"}, "10.0.0.3"},
		{"unparseable peer", "@pipe", nil, "@pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, proxies.ClientIP(tt.remote, tt.chain))
		})
	}
}

func TestTrustedProxies_Nil(t *testing.T) {
	var p *TrustedProxies
	assert.False(t, p.Contains(netip.MustParseAddr("10.0.0.1")))
	assert.Equal(t, "10.0.0.1", p.ClientIP("10.0.0.1:80", []string{"1.2.3.4"}))

	_, err := NewTrustedProxies("nope")
	assert.ErrorIs(t, err, ErrInvalidRange)
}
