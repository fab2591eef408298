package station

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveTables(t *testing.T) {
	r := NewResolver()

	for city, want := range metroStations {
		code, metro := r.Resolve(city)
		assert.Equal(t, want, code, city)
		assert.True(t, metro, city)
	}
	for city, want := range singleStations {
		code, metro := r.Resolve(city)
		assert.Equal(t, want, code, city)
		assert.False(t, metro, city)
	}
}

func TestResolveNormalizesInput(t *testing.T) {
	r := NewResolver()

	code, metro := r.Resolve("  HyDeRaBaD ")
	assert.Equal(t, "HYD", code)
	assert.True(t, metro)

	code, metro = r.Resolve("New   Delhi")
	assert.Equal(t, "NDLS", code)
	assert.True(t, metro)
}

func TestResolveFallback(t *testing.T) {
	r := NewResolver()

	tests := []struct {
		city string
		want string
	}{
		{"Kurnool", "KUR"},
		{"  san francisco", "SAN"},
		{"x y", "XY"},
		{"", PlaceholderCode},
		{"   ", PlaceholderCode},
	}

	for _, tt := range tests {
		t.Run(tt.city, func(t *testing.T) {
			code, metro := r.Resolve(tt.city)
			assert.Equal(t, tt.want, code)
			assert.False(t, metro)
		})
	}
}

func TestResolveFallbackIsFirstThreeNonSpace(t *testing.T) {
	r := NewResolver()
	for _, city := range []string{"Rajahmundry", "Kakinada Port", "s ri kakulam"} {
		code, _ := r.Resolve(city)
		compact := strings.ToUpper(strings.ReplaceAll(city, " ", ""))
		assert.Equal(t, compact[:3], code)
	}
}

func TestSegment(t *testing.T) {
	r := NewResolver()

	assert.Equal(t, "Ongole--All-Stations-(ONG)", r.Segment("ongole"))
	assert.Equal(t, "Hyderabad--All-Stations-(HYD)", r.Segment("Hyderabad"))
	assert.Equal(t, "Jaipur-(JP)", r.Segment("JAIPUR"))
	assert.Equal(t, "New-Delhi--All-Stations-(NDLS)", r.Segment("new delhi"))
	assert.Equal(t, "Kurnool-(KUR)", r.Segment("kurnool"))
}

func TestAirport(t *testing.T) {
	r := NewResolver()

	assert.Equal(t, "BLR", r.Airport("Bangalore"))
	assert.Equal(t, "JFK", r.Airport("new york"))
	assert.Equal(t, "MAD", r.Airport("madrid"))
	assert.Equal(t, PlaceholderCode, r.Airport(""))
}
