// internal/mbim/utf16.go
package mbim

import (
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

func decodeUTF16(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", errors.Wrap(ErrMalformed, "odd utf-16 length")
	}
	out, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return "", errors.Wrap(ErrMalformed, err.Error())
	}
	return string(out), nil
}

func encodeUTF16(s string) ([]byte, error) {
	out, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, errors.Wrap(ErrSignature, err.Error())
	}
	return out, nil
}
