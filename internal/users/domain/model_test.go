package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateUsername(t *testing.T) {
	cases := []struct {
		name     string
		username string
		wantErr  error
	}{
		{"two chars rejected", "ab", ErrUsernameTooShort},
		{"three chars accepted", "abc", nil},
		{"twenty-five chars accepted", strings.Repeat("a", 25), nil},
		{"twenty-six chars rejected", strings.Repeat("a", 26), ErrUsernameTooLong},
		{"space rejected", "a b", ErrUsernameBadChars},
		{"underscore accepted", "cool_name_42", nil},
		{"digits accepted", "user123", nil},
		{"dash rejected", "user-name", ErrUsernameBadChars},
		{"unicode rejected", "usér", ErrUsernameBadChars},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateUsername(tc.username)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
			assert.ErrorIs(t, err, ErrInvalidUsername)
		})
	}
}

func TestCooldownErrorHoursLeft(t *testing.T) {
	e := &CooldownError{Remaining: 23*time.Hour + 30*time.Minute}
	assert.Equal(t, 23, e.HoursLeft())
	assert.Contains(t, e.Error(), "23h")

	e = &CooldownError{Remaining: 45 * time.Minute}
	assert.Equal(t, 0, e.HoursLeft())
}

func TestCooldownErrorAs(t *testing.T) {
	var err error = &CooldownError{Remaining: time.Hour}

	var cooldown *CooldownError
	assert.True(t, errors.As(err, &cooldown))
	assert.Equal(t, time.Hour, cooldown.Remaining)
}

func TestGenderValid(t *testing.T) {
	for _, g := range []Gender{GenderMale, GenderFemale, GenderOther, GenderUnspecified} {
		assert.True(t, g.Valid(), string(g))
	}
	assert.False(t, Gender("unknown").Valid())
	assert.False(t, Gender("").Valid())
}
