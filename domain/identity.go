// Package domain contains core concepts of the relay.
// No runtime, network, or storage logic should be added here.
package domain

import "time"

// Identity is the durable account behind a connection.
// The relay itself only ever reads or writes IsOnline.
type Identity struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	ProfileImage string
	Bio          string
	IsOnline     bool
	Roles        []string
	CreatedAt    time.Time
}

// Profile holds the fields an identity may edit about itself.
type Profile struct {
	FullName     string
	Bio          string
	ProfileImage string
}

// Contact is what the sidebar shows about another identity.
type Contact struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	FullName     string `json:"fullName"`
	ProfileImage string `json:"profileImage"`
	Bio          string `json:"bio"`
	IsOnline     bool   `json:"isOnline"`
}

func (i Identity) Profile() Profile {
	return Profile{FullName: i.FullName, Bio: i.Bio, ProfileImage: i.ProfileImage}
}

func (i Identity) Contact() Contact {
	return Contact{
		ID:           i.ID,
		Email:        i.Email,
		FullName:     i.FullName,
		ProfileImage: i.ProfileImage,
		Bio:          i.Bio,
		IsOnline:     i.IsOnline,
	}
}
