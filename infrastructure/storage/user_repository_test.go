package storage

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Create_And_Get_User(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewUserRepository(openTestDB(t))

	// When a user is created
	id, err := repository.CreateUser(ctx, domain.Identity{
		Email:        "alice@example.com",
		FullName:     "Alice",
		PasswordHash: "hash",
	})
	req.NoError(err)
	req.NotEmpty(id)

	// Then it can be read by id and by email
	byID, err := repository.GetUser(ctx, id)
	req.NoError(err)
	byEmail, err := repository.GetUserByEmail(ctx, "alice@example.com")
	req.NoError(err)
	req.Equal(byID, byEmail)
	req.Equal("Alice", byID.FullName)
	req.Equal([]string{"user"}, byID.Roles)
	req.False(byID.IsOnline)
	req.False(byID.CreatedAt.IsZero())
}

func Test_Create_User_Twice(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.CreateUser(ctx, domain.Identity{Email: "alice@example.com"})
	req.NoError(err)
	_, err = repository.CreateUser(ctx, domain.Identity{Email: "alice@example.com"})

	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func Test_Get_Unknown_User(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.GetUser(ctx, "nobody")
	req.ErrorIs(err, errors.ErrUserNotFound)
	_, err = repository.GetUserByEmail(ctx, "nobody@example.com")
	req.ErrorIs(err, errors.ErrUserNotFound)
	req.ErrorIs(repository.SetOnline(ctx, "nobody", true), errors.ErrUserNotFound)
}

func Test_SetOnline_And_ResetPresence(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewUserRepository(openTestDB(t))
	alice, err := repository.CreateUser(ctx, domain.Identity{Email: "alice@example.com", FullName: "Alice"})
	req.NoError(err)
	bob, err := repository.CreateUser(ctx, domain.Identity{Email: "bob@example.com", FullName: "Bob"})
	req.NoError(err)

	// Given both are online after an unclean shutdown
	req.NoError(repository.SetOnline(ctx, alice, true))
	req.NoError(repository.SetOnline(ctx, bob, true))
	users, err := repository.ListUsers(ctx)
	req.NoError(err)
	req.Len(users, 2)
	req.True(users[0].IsOnline)
	req.Equal("Alice", users[0].FullName)

	// When presence is reset at startup
	reset, err := repository.ResetPresence(ctx)

	// Then everyone is offline
	req.NoError(err)
	req.Equal(2, reset)
	users, err = repository.ListUsers(ctx)
	req.NoError(err)
	for _, u := range users {
		req.False(u.IsOnline)
	}

	// And a second reset has nothing to do
	reset, err = repository.ResetPresence(ctx)
	req.NoError(err)
	req.Zero(reset)
}

func Test_UpdateProfile(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewUserRepository(openTestDB(t))
	id, err := repository.CreateUser(ctx, domain.Identity{Email: "alice@example.com", FullName: "Alice", PasswordHash: "hash"})
	req.NoError(err)

	// When the profile is edited
	updated, err := repository.UpdateProfile(ctx, id, domain.Profile{
		FullName:     "Alice Liddell",
		Bio:          "down the rabbit hole",
		ProfileImage: "https://cdn.example.com/alice.png",
	})
	req.NoError(err)

	// Then the change is durable and the rest of the identity untouched
	stored, err := repository.GetUserByEmail(ctx, "alice@example.com")
	req.NoError(err)
	req.Equal(updated, stored)
	req.Equal("Alice Liddell", stored.FullName)
	req.Equal("down the rabbit hole", stored.Bio)
	req.Equal("https://cdn.example.com/alice.png", stored.ProfileImage)
	req.Equal("hash", stored.PasswordHash)

	// And an unknown id is reported
	_, err = repository.UpdateProfile(ctx, "nobody", domain.Profile{FullName: "Nobody"})
	req.ErrorIs(err, errors.ErrUserNotFound)
}
