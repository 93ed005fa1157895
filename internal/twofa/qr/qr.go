// Package qr renders otpauth provisioning URIs as PNG data URLs.
package qr

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"

	"github.com/pquerna/otp"
)

const DefaultSize = 256

type PNGRenderer struct {
	Size int // square edge in pixels
}

func (r PNGRenderer) RenderDataURL(uri string) (string, error) {
	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return "", fmt.Errorf("qr: parse provisioning uri: %w", err)
	}

	size := r.Size
	if size <= 0 {
		size = DefaultSize
	}
	img, err := key.Image(size, size)
	if err != nil {
		return "", fmt.Errorf("qr: encode: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("qr: png: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
