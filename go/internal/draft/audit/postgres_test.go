package audit

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalPayload(t *testing.T) {
	tests := []struct {
		name      string
		payload   any
		wantValid bool
		wantJSON  string
	}{
		{"nil", nil, false, ""},
		{"map", map[string]int{"attempts": 3}, true, `{"attempts":3}`},
		{"raw", json.RawMessage(`{"a":1}`), true, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := marshalPayload(tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, got.Valid)
			if tt.wantValid {
				assert.JSONEq(t, tt.wantJSON, string(got.RawMessage))
			}
		})
	}

	_, err := marshalPayload(make(chan int))
	assert.Error(t, err)
}

func TestNonEmpty(t *testing.T) {
	assert.Nil(t, nonEmpty(""))
	require.NotNil(t, nonEmpty("x"))
	assert.Equal(t, "x", *nonEmpty("x"))
}
