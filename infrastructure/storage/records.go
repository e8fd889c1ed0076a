package storage

import (
	"chat-relay/domain"
	"time"

	"github.com/google/uuid"
)

// diskMessage is the on-disk shape of a message. Integer keys keep records compact.
type diskMessage struct {
	ID         string `cbor:"1,keyasint"`
	SenderID   string `cbor:"2,keyasint"`
	ReceiverID string `cbor:"3,keyasint"`
	Text       string `cbor:"4,keyasint,omitempty"`
	Image      string `cbor:"5,keyasint,omitempty"`
	Seen       bool   `cbor:"6,keyasint"`
	CreatedAt  int64  `cbor:"7,keyasint"`
}

type diskUser struct {
	ID           string   `cbor:"1,keyasint"`
	Email        string   `cbor:"2,keyasint"`
	FullName     string   `cbor:"3,keyasint"`
	PasswordHash string   `cbor:"4,keyasint"`
	ProfileImage string   `cbor:"5,keyasint,omitempty"`
	Bio          string   `cbor:"6,keyasint,omitempty"`
	IsOnline     bool     `cbor:"7,keyasint"`
	Roles        []string `cbor:"8,keyasint"`
	CreatedAt    int64    `cbor:"9,keyasint"`
}

func fromMessage(m domain.Message) diskMessage {
	return diskMessage{
		ID:         m.ID.String(),
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Text:       m.Text,
		Image:      m.Image,
		Seen:       m.Seen,
		CreatedAt:  m.CreatedAt.UnixNano(),
	}
}

func toMessage(d diskMessage) (domain.Message, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:         id,
		SenderID:   d.SenderID,
		ReceiverID: d.ReceiverID,
		Text:       d.Text,
		Image:      d.Image,
		Seen:       d.Seen,
		CreatedAt:  time.Unix(0, d.CreatedAt).UTC(),
	}, nil
}

func fromIdentity(i domain.Identity) diskUser {
	return diskUser{
		ID:           i.ID,
		Email:        i.Email,
		FullName:     i.FullName,
		PasswordHash: i.PasswordHash,
		ProfileImage: i.ProfileImage,
		Bio:          i.Bio,
		IsOnline:     i.IsOnline,
		Roles:        i.Roles,
		CreatedAt:    i.CreatedAt.Unix(),
	}
}

func toIdentity(d diskUser) domain.Identity {
	return domain.Identity{
		ID:           d.ID,
		Email:        d.Email,
		FullName:     d.FullName,
		PasswordHash: d.PasswordHash,
		ProfileImage: d.ProfileImage,
		Bio:          d.Bio,
		IsOnline:     d.IsOnline,
		Roles:        d.Roles,
		CreatedAt:    time.Unix(d.CreatedAt, 0).UTC(),
	}
}
