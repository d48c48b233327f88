package service

import (
	"net/mail"
	"unicode/utf8"

	apperrors "github.com/spec-kit/profile-service/pkg/util"
)

// maxPasswordBytes is bcrypt's input limit; longer inputs would be silently truncated.
const maxPasswordBytes = 72

// checkPassword applies the caller-side password policy before hashing.
func checkPassword(password string, minLength int) error {
	if utf8.RuneCountInString(password) < minLength {
		return apperrors.NewWeakPassword(minLength)
	}
	return checkPasswordSize(password)
}

func checkPasswordSize(password string) error {
	if len(password) > maxPasswordBytes {
		return apperrors.NewInputError("password too long", map[string]any{"max_bytes": maxPasswordBytes})
	}
	return nil
}

// validEmail accepts a bare addr-spec; display names and angle brackets are rejected.
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Name == "" && addr.Address == email
}
