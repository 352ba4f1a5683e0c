// Package tickets renders the door QR code of a purchased event ticket.
package tickets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/skip2/go-qrcode"
)

const (
	scheme      = "nightvibe://ticket/"
	defaultSize = 512
)

// Payload returns the string encoded in a ticket's QR code.
func Payload(eventID, paymentIntentID string) string {
	return scheme + eventID + "/" + paymentIntentID
}

// ParsePayload is the inverse of Payload.
func ParsePayload(s string) (eventID, paymentIntentID string, err error) {
	rest, ok := strings.CutPrefix(s, scheme)
	if !ok {
		return "", "", fmt.Errorf("not a ticket payload: %q", s)
	}
	eventID, paymentIntentID, ok = strings.Cut(rest, "/")
	if !ok || eventID == "" || paymentIntentID == "" {
		return "", "", fmt.Errorf("malformed ticket payload: %q", s)
	}
	return eventID, paymentIntentID, nil
}

// Renderer writes ticket QR codes as PNG files under a directory.
type Renderer struct {
	dir  string
	size int
}

// NewRenderer returns a renderer writing into dir.
func NewRenderer(dir string) *Renderer {
	return &Renderer{dir: dir, size: defaultSize}
}

// PNG returns the QR code of a ticket as PNG bytes.
func (r *Renderer) PNG(eventID, paymentIntentID string) ([]byte, error) {
	png, err := qrcode.Encode(Payload(eventID, paymentIntentID), qrcode.Medium, r.size)
	if err != nil {
		return nil, fmt.Errorf("encode ticket qr: %w", err)
	}
	return png, nil
}

// Issue writes the ticket's QR code to disk and returns its path.
func (r *Renderer) Issue(eventID, paymentIntentID string) (string, error) {
	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return "", fmt.Errorf("create ticket dir: %w", err)
	}
	path := filepath.Join(r.dir, safe(eventID)+"_"+safe(paymentIntentID)+".png")
	if err := qrcode.WriteFile(Payload(eventID, paymentIntentID), qrcode.Medium, r.size, path); err != nil {
		return "", fmt.Errorf("write ticket qr: %w", err)
	}
	return path, nil
}

func safe(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
