package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/yoshiniks/nodeAppShop/internal/xerrors"
)

// FieldName is the form field and query parameter carrying the token.
const FieldName = "_csrf"

// CodeBadToken is reported by TokenError.Code.
const CodeBadToken = "EBADCSRFTOKEN"

const saltLen = 8

const saltAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ErrInvalidToken matches every TokenError with errors.Is.
var ErrInvalidToken = errors.New("csrf: invalid token")

// headers are consulted in order after the form field.
var headers = []string{"Csrf-Token", "X-Csrf-Token", "X-Xsrf-Token"}

type TokenError struct {
	Reason string
}

func (e *TokenError) Error() string { return "csrf: invalid token: " + e.Reason }

func (e *TokenError) Code() string { return CodeBadToken }

func (e *TokenError) Is(target error) bool { return target == ErrInvalidToken }

// Token mints a token for secret with a fresh salt.
func Token(secret string) (string, error) {
	if secret == "" {
		return "", xerrors.New("csrf: empty secret")
	}
	salt, err := newSalt()
	if err != nil {
		return "", err
	}
	return salt + "-" + sign(secret, salt), nil
}

// Verify reports whether token was minted from secret.
func Verify(secret, token string) bool {
	if secret == "" {
		return false
	}
	salt, mac, ok := strings.Cut(token, "-")
	if !ok || len(salt) != saltLen || mac == "" {
		return false
	}
	return hmac.Equal([]byte(mac), []byte(sign(secret, salt)))
}

// Ignored reports whether method is exempt from checking.
func Ignored(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// FromRequest returns the submitted token: the form field, then the token
// headers, then the query string. form holds the already decoded body.
func FromRequest(r *http.Request, form url.Values) string {
	if v := form.Get(FieldName); v != "" {
		return v
	}
	for _, h := range headers {
		if v := r.Header.Get(h); v != "" {
			return v
		}
	}
	return r.URL.Query().Get(FieldName)
}

// Check validates the token carried by r against secret. Ignored methods
// always pass.
func Check(r *http.Request, form url.Values, secret string) error {
	if Ignored(r.Method) {
		return nil
	}
	tok := FromRequest(r, form)
	if tok == "" {
		return xerrors.WithStack(&TokenError{Reason: "missing token"})
	}
	if !Verify(secret, tok) {
		return xerrors.WithStack(&TokenError{Reason: "token mismatch"})
	}
	return nil
}

func sign(secret, salt string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(salt))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func newSalt() (string, error) {
	b := make([]byte, saltLen)
	if _, err := rand.Read(b); err != nil {
		return "", xerrors.Wrap(err, "csrf: read random")
	}
	for i := range b {
		b[i] = saltAlphabet[int(b[i])%len(saltAlphabet)]
	}
	return string(b), nil
}
