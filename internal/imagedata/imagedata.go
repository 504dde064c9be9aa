// Package imagedata converts garment uploads to and from data URLs.
package imagedata

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"regexp"
	"strings"

	_ "golang.org/x/image/webp"
)

var (
	ErrInvalidDataURL = errors.New("invalid image data url")
	ErrNotAnImage     = errors.New("upload is not a supported image")
)

var dataURLRegex = regexp.MustCompile(`^data:(image/\w+);base64,(.+)$`)

// Encoded is an image carried as a base64 payload.
type Encoded struct {
	MIMEType string
	Payload  string
}

// ParseDataURL accepts only data:image/<subtype>;base64,<payload>.
func ParseDataURL(value string) (Encoded, error) {
	m := dataURLRegex.FindStringSubmatch(value)
	if len(m) != 3 {
		return Encoded{}, ErrInvalidDataURL
	}
	return Encoded{MIMEType: m[1], Payload: m[2]}, nil
}

func (e Encoded) Bytes() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return data, nil
}

func (e Encoded) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", e.MIMEType, e.Payload)
}

// Upload is a decoded, validated image.
type Upload struct {
	MIMEType string
	Data     []byte
	Width    int
	Height   int
}

// FromBytes sniffs and validates raw upload bytes. mimeHint (a Content-Type
// header, possibly with parameters) is used only when it names an image type
// and sniffing is inconclusive.
func FromBytes(data []byte, mimeHint string) (Upload, error) {
	if len(data) == 0 {
		return Upload{}, fmt.Errorf("%w: empty upload", ErrNotAnImage)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Upload{}, fmt.Errorf("%w: %v", ErrNotAnImage, err)
	}

	mimeType := baseMIME(http.DetectContentType(data))
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = baseMIME(mimeHint)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/" + format
	}

	return Upload{
		MIMEType: mimeType,
		Data:     data,
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}

func (u Upload) Encoded() Encoded {
	return Encoded{
		MIMEType: u.MIMEType,
		Payload:  base64.StdEncoding.EncodeToString(u.Data),
	}
}

func (u Upload) DataURL() string {
	return u.Encoded().DataURL()
}

func baseMIME(value string) string {
	value = strings.TrimSpace(value)
	if i := strings.IndexByte(value, ';'); i >= 0 {
		value = strings.TrimSpace(value[:i])
	}
	return strings.ToLower(value)
}
