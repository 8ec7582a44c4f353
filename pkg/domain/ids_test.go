package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "riskwatch/pkg/domain-errors"
)

// TestParseRecordKey_Invariants validates the parsing invariant:
// "record keys are non-empty, bounded, printable and whitespace-free".
func TestParseRecordKey_Invariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"generator customer id", "CUST_00042", false},
		{"fuzzy test customer id", "CUST_00011_FUZZY_TEST", false},
		{"dashed sanctions id", "SAN-2291", false},
		{"empty string", "", true},
		{"whitespace only", "   ", true},
		{"embedded space", "CUST 1", true},
		{"SQL injection attempt", "'; DROP TABLE customers;--", true},
		{"path traversal", "../../etc/passwd", true},
		{"null byte", "CUST\x0001", true},
		{"oversized input", strings.Repeat("a", 65), true},
		{"leading separator", "_CUST", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errCustomer := ParseCustomerID(tt.input)
			_, errEntity := ParseEntityID(tt.input)
			if tt.wantErr {
				require.Error(t, errCustomer)
				require.Error(t, errEntity)
				assert.True(t, dErrors.HasCode(errCustomer, dErrors.CodeInvalidInput))
				assert.True(t, dErrors.HasCode(errEntity, dErrors.CodeInvalidInput))
				return
			}
			require.NoError(t, errCustomer)
			require.NoError(t, errEntity)
		})
	}
}

func TestParseCycleID(t *testing.T) {
	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseCycleID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("round-trips a generated id", func(t *testing.T) {
		id := NewCycleID()
		parsed, err := ParseCycleID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
		assert.False(t, parsed.IsNil())
	})

	t.Run("encodes as a UUID string in JSON", func(t *testing.T) {
		id := NewCycleID()
		raw, err := json.Marshal(struct {
			ID CycleID `json:"id"`
		}{id})
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"`+id.String()+`"}`, string(raw))

		var back struct {
			ID CycleID `json:"id"`
		}
		require.NoError(t, json.Unmarshal(raw, &back))
		assert.Equal(t, id, back.ID)

		err = json.Unmarshal([]byte(`{"id":"nope"}`), &back)
		require.Error(t, err)
	})
}
