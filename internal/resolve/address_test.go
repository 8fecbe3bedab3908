package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAddress_Abbreviations(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"street", "123 Main Street", "123 MAIN ST"},
		{"drive", "45 Oak Drive", "45 OAK DR"},
		{"court", "9 Palm Court", "9 PALM CT"},
		{"lane", "77 Cedar Lane", "77 CEDAR LN"},
		{"avenue", "10 Grand Avenue", "10 GRAND AVE"},
		{"terrace", "5 Bay Terrace", "5 BAY TER"},
		{"extension dropped", "12 Mill Road Extension", "12 MILL ROAD"},
		{"compass long", "200 Northwest 1 Street", "200 NW 1 ST"},
		{"compass short", "200 West Flagler Street", "200 W FLAGLER ST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeAddress(tt.input))
		})
	}
}

func TestNormalizeAddress_OrdinalStreetNames(t *testing.T) {
	// Letters are stripped from mixed tokens after the house number, so
	// ordinals match the appraiser's numeric street names.
	assert.Equal(t, "100 NW 42 AVE", NormalizeAddress("100 Northwest 42nd Avenue"))
	assert.Equal(t, "350 SE 2 ST", NormalizeAddress("350 Southeast 2ND Street"))
}

func TestNormalizeAddress_HouseNumberKeepsSuffix(t *testing.T) {
	// Only the leading token is exempt from digit stripping.
	assert.Equal(t, "123A MAIN ST", NormalizeAddress("123A Main Street"))
}

func TestNormalizeAddress_OrderedRules(t *testing.T) {
	// Rules run in table order: AVENUE abbreviates first, so the later
	// "441 AVENUE" phrase rule sees "441 AVE" and leaves it alone.
	assert.Equal(t, "500 441 AVE", NormalizeAddress("500 441 Avenue"))
	// The long compass names fire before the short ones they contain.
	assert.Equal(t, "1 NW 2 AVE", NormalizeAddress("1 Northwest 2nd Avenue"))
}

func TestNormalizeAddress_Whitespace(t *testing.T) {
	assert.Equal(t, "123 MAIN ST", NormalizeAddress("  123   Main    Street "))
	assert.Equal(t, "", NormalizeAddress("   "))
}

func TestNormalizeAddress_Idempotent(t *testing.T) {
	once := NormalizeAddress("200 Northwest 42nd Street")
	assert.Equal(t, once, NormalizeAddress(once))
}

func TestHouseNumber(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
		ok    bool
	}{
		{"plain", "123 MAIN ST", 123, true},
		{"suffix letter", "123A MAIN ST", 123, true},
		{"no number", "MAIN ST", 0, false},
		{"empty", "", 0, false},
		{"leading spaces", "  42 OAK DR", 42, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := HouseNumber(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
