package ean

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Lengths(t *testing.T) {
	cases := []struct {
		name  string
		input string
		ok    bool
		value string
	}{
		{"12 digits gets leading zero", "123456789012", true, "0123456789012"},
		{"13 digits unchanged", "1234567890123", true, "1234567890123"},
		{"14 digits leading zero trimmed", "01234567890123", true, "1234567890123"},
		{"14 digits no leading zero kept as GTIN-14", "11234567890123", true, "11234567890123"},
		{"9 digits rejected", "123456789", false, ""},
		{"non digit rejected", "12345abc9012", false, ""},
		{"whitespace and hyphen collapsed", " 123-456-789012 ", true, "0123456789012"},
		{"empty rejected", "", false, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Normalize(c.input)
			require.Equal(t, c.ok, got.OK)
			if c.ok {
				assert.Equal(t, c.value, got.Value)
			} else {
				assert.NotEmpty(t, got.Reason)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{"123456789012", "1234567890123", "01234567890123", "11234567890123"}
	for _, in := range inputs {
		first := Normalize(in)
		require.True(t, first.OK)
		second := Normalize(first.Value)
		require.True(t, second.OK)
		assert.Equal(t, first.Value, second.Value)
	}
}
