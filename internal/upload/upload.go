package upload

import (
	"crypto/rand"
	"errors"
	"math/big"
	"mime"
	"strings"

	"github.com/yoshiniks/nodeAppShop/internal/xerrors"
)

const (
	// FieldName is the only multipart field inspected for a file.
	FieldName = "image"

	DefaultDir = "images"

	// DefaultMaxMemory bounds the parts held in memory while parsing.
	DefaultMaxMemory = 10 << 20
)

const (
	ReasonType     = "unsupported type"
	ReasonFilename = "invalid filename"
)

var allowedTypes = map[string]bool{
	"image/png":  true,
	"image/jpg":  true,
	"image/jpeg": true,
}

var ErrStorage = errors.New("upload: storage failure")

type Kind int

const (
	// None means the request carried no file in the image field.
	None Kind = iota
	Accepted
	Rejected
)

func (k Kind) String() string {
	switch k {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	default:
		return "none"
	}
}

// File describes a stored upload. Ownership passes to the route handler.
type File struct {
	FieldName    string
	OriginalName string
	StoredName   string
	Dir          string
	Path         string
	ContentType  string
	Size         int64
}

type Result struct {
	Kind Kind
	// File is set only when Kind is Accepted.
	File   *File
	Reason string
}

// Allowed reports whether the declared content type may be stored.
// Parameters are ignored and the comparison is case-insensitive.
func Allowed(contentType string) bool {
	return allowedTypes[mediaType(contentType)]
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

var (
	tokenMin   = new(big.Int).Exp(big.NewInt(10), big.NewInt(15), nil)
	tokenRange = new(big.Int).Sub(new(big.Int).Exp(big.NewInt(10), big.NewInt(20), nil), tokenMin)
)

// newToken returns a random decimal token of 16 to 20 digits.
func newToken() (string, error) {
	n, err := rand.Int(rand.Reader, tokenRange)
	if err != nil {
		return "", xerrors.Wrap(err, "upload: read random")
	}
	return n.Add(n, tokenMin).String(), nil
}

// StoredName prefixes base with a fresh random token.
func StoredName(base string) (string, error) {
	tok, err := newToken()
	if err != nil {
		return "", err
	}
	return tok + "-" + base, nil
}
