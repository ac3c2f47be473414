package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "ada_lovelace", false},
		{"too short", "ab", true},
		{"empty", "", true},
		{"bad chars", "ada-l", true},
		{"too long", strings.Repeat("a", MaxUsernameLength+1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("correct horse"))
	assert.Error(t, ValidatePassword("short"))
	assert.Error(t, ValidatePassword(strings.Repeat("x", MaxPasswordLength+1)))
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID("pg_01HZX", "id", true))
	assert.NoError(t, ValidateID("", "id", false))
	assert.Error(t, ValidateID("", "id", true))
	assert.Error(t, ValidateID("../etc", "id", true))
}

func TestValidateStringRejectsNullBytes(t *testing.T) {
	assert.Error(t, ValidateString("a\x00b", "field", 0, 10, true))
	assert.NoError(t, ValidateTitle(""))
	assert.Error(t, ValidateMessage("   "))
}

func TestTokenDigest(t *testing.T) {
	a := TokenDigest("token")
	assert.Len(t, a, 64)
	assert.Equal(t, a, TokenDigest("token"))
	assert.NotEqual(t, a, TokenDigest("token2"))
	assert.NotContains(t, a, "token")
}
