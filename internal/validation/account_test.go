package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"Valid", "secret1", false},
		{"Exactly Min Length", "abcdef", false},
		{"Exactly Max Bytes", strings.Repeat("b", 72), false},
		{"Too Short", "abc12", true},
		{"One Byte Over", strings.Repeat("b", 73), true},
		{"Whitespace Only", "        ", true},
		{"Unicode Counted As Characters", "ÅÅÅÅÅÅ", false},
		{"Multibyte Over Byte Limit", strings.Repeat("Å", 37), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"Valid", "test_user123", false},
		{"Dots And Dashes", "jane.doe-builds", false},
		{"Too Short", "tu", true},
		{"Too Long", strings.Repeat("u", 31), true},
		{"Illegal Chars", "user@123", true},
		{"Spaces", "wood worker", true},
		{"Route Word Allowed", "admin", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	t.Parallel()
	// 254 chars total: 64 local + @ + 185 domain label + ".com" (4)
	emailAt254 := strings.Repeat("a", 64) + "@" + strings.Repeat("b", 185) + ".com"
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"Valid", "test@example.com", false},
		{"Subdomain", "maker@mail.example.co.uk", false},
		{"Exactly 254 Characters", emailAt254, false},
		{"Too Long", "a" + emailAt254, true},
		{"Invalid Format", "not-an-email", true},
		{"Missing Domain", "user@", true},
		{"Multiple At Symbols", "user@@example.com", true},
		{"Space In Local Part", "user @example.com", true},
		{"Trailing Dot In Domain", "user@example.com.", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAccount_CollectsAllErrors(t *testing.T) {
	errs := ValidateAccount("x", "nope", "123")
	assert.Len(t, errs, 3)
	assert.Empty(t, ValidateAccount("builder", "b@example.com", "secret"))
	assert.Equal(t, "maker@example.com", NormalizeEmail("  Maker@Example.COM "))
}
