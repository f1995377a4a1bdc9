// Package qr renders the shareable check-in link as a QR code image.
package qr

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const defaultSize = 256

// AttendURL builds the student-facing check-in link for a session.
func AttendURL(baseURL, sessionID string) string {
	return strings.TrimRight(baseURL, "/") + "/attend/" + sessionID
}

// PNG encodes the attend link for a session as a PNG image. size <= 0 uses
// the default.
func PNG(baseURL, sessionID string, size int) ([]byte, error) {
	if size <= 0 {
		size = defaultSize
	}
	png, err := qrcode.Encode(AttendURL(baseURL, sessionID), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
