package identity

import (
	"regexp"
	"unicode/utf8"

	"github.com/classhub/identity-service/internal/domain"
)

const (
	usernameMinLen = 2
	usernameMaxLen = 20
	passwordMinLen = 6
)

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	// 11 digits, leading 1, second digit 3-9 (mobile number plan)
	phoneRe = regexp.MustCompile(`^1[3-9][0-9]{9}$`)
)

func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < usernameMinLen || n > usernameMaxLen {
		return domain.ErrInvalidField("username", "length must be between 2 and 20 characters")
	}
	return nil
}

func validateEmail(email string) error {
	if !emailRe.MatchString(email) {
		return domain.ErrInvalidField("email", "invalid email format")
	}
	return nil
}

func validatePhone(phone string) error {
	if !phoneRe.MatchString(phone) {
		return domain.ErrInvalidField("phone", "must be an 11-digit mobile number")
	}
	return nil
}

func validateNewPassword(password string) error {
	if len(password) < passwordMinLen {
		return domain.ErrWeakPassword("min length 6")
	}
	return nil
}
