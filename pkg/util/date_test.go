package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)

	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"rfc3339", "2024-10-10T10:10:10Z", want},
		{"rfc3339 offset", "2024-10-10T12:10:10+02:00", want},
		{"zone-less iso", "2024-10-10T10:10:10", want},
		{"space separated", "2024-10-10 10:10:10", want},
		{"date only", "2024-10-10", time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)},
		{"unix seconds", strconv.FormatInt(want.Unix(), 10), want},
		{"unix millis", strconv.FormatInt(want.UnixMilli(), 10), want},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTime(tt.in)
			require.True(t, ok)
			assert.True(t, got.Equal(tt.want), "got %s", got)
		})
	}

	for _, bad := range []string{"", "yesterday", "-5", "0"} {
		_, ok := ParseTime(bad)
		assert.False(t, ok, bad)
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	assert.True(t, ParseTimeDefault("", def).Equal(def))
	assert.True(t, ParseTimeDefault("garbage", def).Equal(def))
}
