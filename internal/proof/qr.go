// Package proof renders a reservation's check-in token as a QR image.
package proof

import (
	"errors"
	"fmt"

	"github.com/skip2/go-qrcode"
)

const DefaultSize = 256

var ErrEmptyToken = errors.New("proof: empty token")

// PNG encodes token as a QR code PNG of size x size pixels.
func PNG(token string, size int) ([]byte, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qrcode.Encode(token, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("proof: encoding qr: %w", err)
	}
	return png, nil
}
