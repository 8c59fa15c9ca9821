package qr

import (
	"encoding/base64"

	"github.com/skip2/go-qrcode"
)

// PNGBase64 renders a PIX copy-and-paste payload as a base64 PNG, used when
// the gateway response carries the payload but not a pre-rendered image.
func PNGBase64(payload string) (string, error) {
	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
