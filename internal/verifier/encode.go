package verifier

import (
	"encoding/base64"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultImageMIME labels every image unless MIME detection is enabled.
const DefaultImageMIME = "image/jpeg"

func readImage(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, &ValidationError{Field: "image", Reason: "is required"}
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, &ValidationError{Field: "image", Reason: "is empty"}
	}
	return b, nil
}

// EncodeImage returns the data URI for img and the MIME type it carries.
// With detect set, non-image payloads are rejected.
func EncodeImage(img []byte, detect bool) (string, string, error) {
	mime := DefaultImageMIME
	if detect {
		m := mimetype.Detect(img)
		if !strings.HasPrefix(m.String(), "image/") {
			return "", "", &ValidationError{Field: "image", Reason: "is not a supported image (detected " + m.String() + ")"}
		}
		mime = m.String()
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img), mime, nil
}

// DecodeImageBase64 decodes standard base64, tolerating surrounding
// whitespace and a data URI prefix.
func DecodeImageBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	return base64.StdEncoding.DecodeString(s)
}
