package user

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/yoshiniks/nodeAppShop/internal/xerrors"
)

const (
	PasswordCost = 12
	// MaxPasswordLen is bcrypt's input limit. Longer input would be truncated.
	MaxPasswordLen = 72
)

var ErrPasswordTooLong = errors.New("user: password exceeds 72 bytes")

func HashPassword(password string) (string, error) {
	if len(password) > MaxPasswordLen {
		return "", xerrors.WithStack(ErrPasswordTooLong)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", xerrors.Wrap(err, "user: hash password")
	}
	return string(h), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
