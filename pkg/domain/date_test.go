package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateOf(t *testing.T) {
	t.Run("truncates to the UTC day", func(t *testing.T) {
		ts := time.Date(2024, 3, 9, 23, 59, 59, 0, time.UTC)
		assert.Equal(t, "2024-03-09", DateOf(ts).String())
	})

	t.Run("converts offsets to UTC before truncating", func(t *testing.T) {
		cet := time.FixedZone("CET", 3600)
		ts := time.Date(2024, 3, 10, 0, 30, 0, 0, cet)
		assert.Equal(t, "2024-03-09", DateOf(ts).String())
	})
}

func TestDateArithmetic(t *testing.T) {
	d := MustDate("2024-03-01")
	assert.Equal(t, "2024-02-29", d.AddDays(-1).String())
	assert.True(t, d.AddDays(-1).Before(d))
	assert.True(t, d.After(d.AddDays(-1)))
	assert.True(t, d.Equal(NewDate(2024, time.March, 1)))
}

func TestDateJSON(t *testing.T) {
	t.Run("round trips a set date", func(t *testing.T) {
		raw, err := json.Marshal(MustDate("1985-07-14"))
		require.NoError(t, err)
		assert.JSONEq(t, `"1985-07-14"`, string(raw))

		var back Date
		require.NoError(t, json.Unmarshal(raw, &back))
		assert.True(t, back.Equal(MustDate("1985-07-14")))
	})

	t.Run("zero date is null", func(t *testing.T) {
		raw, err := json.Marshal(Date{})
		require.NoError(t, err)
		assert.Equal(t, "null", string(raw))
	})

	t.Run("rejects malformed dates", func(t *testing.T) {
		var d Date
		assert.Error(t, json.Unmarshal([]byte(`"14/07/1985"`), &d))
	})
}
