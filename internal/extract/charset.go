package extract

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

// DecodeBody converts a response body to UTF-8 before parsing. When
// preferServer is set, the charset declared in the Content-Type header wins;
// otherwise a body that is already valid UTF-8 passes through unchanged and
// any other body's encoding is detected from the content alone (meta tags
// and byte sniffing).
func DecodeBody(body []byte, contentType string, preferServer bool) ([]byte, error) {
	if !preferServer && utf8.Valid(body) {
		return body, nil
	}

	hint := ""
	if preferServer {
		hint = contentType
	}

	r, err := charset.NewReader(bytes.NewReader(body), hint)
	if err != nil {
		return nil, fmt.Errorf("detect charset: %w", err)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return decoded, nil
}
