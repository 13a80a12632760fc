// Package onboarding derives the join URL and QR code for a room.
// Purely presentational; the engine never consults it.
package onboarding

import (
	"encoding/base64"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// QRSize is the pixel width of generated QR codes.
const QRSize = 256

// JoinURL is the address a phone opens to join a room.
func JoinURL(baseURL, roomCode string) string {
	return strings.TrimRight(baseURL, "/") + "/mobile/" + roomCode
}

// QRPNG renders the join URL as a PNG.
func QRPNG(baseURL, roomCode string) ([]byte, error) {
	png, err := qrcode.Encode(JoinURL(baseURL, roomCode), qrcode.Medium, QRSize)
	if err != nil {
		return nil, fmt.Errorf("encoding QR for %s: %w", roomCode, err)
	}
	return png, nil
}

// QRDataURL renders the join URL as a data: URL for direct embedding.
func QRDataURL(baseURL, roomCode string) (string, error) {
	png, err := QRPNG(baseURL, roomCode)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
