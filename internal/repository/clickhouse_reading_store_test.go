package repository

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domrepo "LabPulse/internal/domain/repository"
)

func TestBuildListQuery(t *testing.T) {
	tests := []struct {
		name     string
		q        domrepo.ReadingQuery
		contains []string
		absent   []string
		args     []interface{}
	}{
		{
			name:     "user only ascending",
			q:        domrepo.ReadingQuery{UserID: 7},
			contains: []string{"FROM labpulse.biomarkers", "WHERE user_id = ?", "ORDER BY recorded_at ASC"},
			absent:   []string{"positionCaseInsensitiveUTF8", "LIMIT"},
			args:     []interface{}{int64(7)},
		},
		{
			name:     "name filter descending limited",
			q:        domrepo.ReadingQuery{UserID: 7, NameContains: "ldl", Order: domrepo.OrderDesc, Limit: 10},
			contains: []string{"positionCaseInsensitiveUTF8(name, ?) > 0", "ORDER BY recorded_at DESC", "LIMIT ?"},
			args:     []interface{}{int64(7), "ldl", 10},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := buildListQuery("labpulse.biomarkers", tt.q)
			for _, s := range tt.contains {
				assert.Contains(t, sql, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, sql, s)
			}
			assert.Equal(t, tt.args, args)
		})
	}
}

type stubNameRows struct {
	names []string
	i     int
	err   error
}

func (r *stubNameRows) Next() bool { r.i++; return r.i <= len(r.names) }

func (r *stubNameRows) Scan(dest ...any) error {
	*dest[0].(*string) = r.names[r.i-1]
	return nil
}

func (r *stubNameRows) Err() error { return r.err }

func TestScanNames(t *testing.T) {
	names, err := scanNames(&stubNameRows{})
	require.NoError(t, err)
	b, err := json.Marshal(names)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(b))

	names, err = scanNames(&stubNameRows{names: []string{"LDL", "HDL"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"LDL", "HDL"}, names)

	_, err = scanNames(&stubNameRows{err: errors.New("conn reset")})
	require.Error(t, err)
}
