// Package domain contains core concepts of the relay.
// This file defines Message records and the rules deciding what may be stored.
package domain

import (
	"chat-relay/errors"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// Message is the durable record of one relayed message.
// Seen only ever moves from false to true.
type Message struct {
	ID         uuid.UUID
	SenderID   string
	ReceiverID string
	Text       string
	Image      string
	Seen       bool
	CreatedAt  time.Time
}

func NewMessage(senderID, receiverID, text, image string, at time.Time) Message {
	return Message{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		Image:      image,
		CreatedAt:  at.UTC(),
	}
}

// IsStorable reports whether the message carries anything worth persisting.
func (m Message) IsStorable() bool {
	return strings.TrimSpace(m.Text) != "" || m.Image != ""
}

const dataURLPrefix = "data:"

// IsInlineImage reports whether image is a raw data URL rather than an already hosted URL.
func IsInlineImage(image string) bool {
	return strings.HasPrefix(image, dataURLPrefix)
}

// ValidateImage accepts an empty image, an http(s) URL, or a base64 data URL
// whose decoded bytes sniff as an image no larger than maxBytes.
// It returns the detected MIME type of inline images.
func ValidateImage(image string, maxBytes int) (string, error) {
	switch {
	case image == "":
		return "", nil
	case strings.HasPrefix(image, "https://"), strings.HasPrefix(image, "http://"):
		return "", nil
	case !IsInlineImage(image):
		return "", fmt.Errorf("%w: unsupported image reference", errors.ErrInvalidImage)
	}

	header, data, ok := strings.Cut(strings.TrimPrefix(image, dataURLPrefix), ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return "", fmt.Errorf("%w: data URL must be base64 encoded", errors.ErrInvalidImage)
	}
	if base64.StdEncoding.DecodedLen(len(data)) > maxBytes+2 {
		return "", fmt.Errorf("%w: larger than %d bytes", errors.ErrInvalidImage, maxBytes)
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidImage, err)
	}
	if len(raw) > maxBytes {
		return "", fmt.Errorf("%w: larger than %d bytes", errors.ErrInvalidImage, maxBytes)
	}

	detected := mimetype.Detect(raw)
	if !strings.HasPrefix(detected.String(), "image/") {
		return "", fmt.Errorf("%w: got %s", errors.ErrInvalidImage, detected.String())
	}
	return detected.String(), nil
}
