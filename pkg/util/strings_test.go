package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 5, ParseIntDefault("", 5))
	assert.Equal(t, 5, ParseIntDefault("x", 5))
	assert.Equal(t, 12, ParseIntDefault("12", 5))
}

func TestParseInt64(t *testing.T) {
	v, ok := ParseInt64(" 42 ")
	assert.True(t, ok)
	assert.Equal(t, int64(42), v)

	for _, bad := range []string{"", "0", "-1", "abc"} {
		_, ok := ParseInt64(bad)
		assert.False(t, ok, bad)
	}
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "Fasting Glucose", NormalizeName("  Fasting \t Glucose "))
	assert.Equal(t, "HbA1c", NormalizeName("HbA1c"))
	assert.Equal(t, "", NormalizeName("   "))
}
