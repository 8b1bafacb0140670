package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrUsernameTaken   = errors.New("username is already taken")

	ErrInvalidUsername  = errors.New("invalid username")
	ErrUsernameTooShort = fmt.Errorf("%w: must be at least %d characters long", ErrInvalidUsername, UsernameMinLen)
	ErrUsernameTooLong  = fmt.Errorf("%w: must be no more than %d characters long", ErrInvalidUsername, UsernameMaxLen)
	ErrUsernameBadChars = fmt.Errorf("%w: can only contain letters, numbers, and underscores", ErrInvalidUsername)
)

// CooldownError reports a username change attempted inside the rolling
// 24-hour window, carrying how long the caller still has to wait.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf(
		"you can only change your username once every 24 hours, please try again in %dh",
		e.HoursLeft(),
	)
}

// HoursLeft floors the remaining wait to whole hours, matching what the
// client displays.
func (e *CooldownError) HoursLeft() int {
	return int(e.Remaining.Hours())
}
