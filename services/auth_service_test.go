package services

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/mocks"
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const maxImageBytes = 1 << 20

// 1x1 transparent PNG
var pixelPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func TestAuthService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockIUserRepository(ctrl)
	tokens := auth.NewTokens("test-secret", 24*time.Hour)
	svc := NewAuthService(mockRepo, tokens, maxImageBytes)
	ctx := context.Background()

	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)

		// Expect the stored identity to carry a hash, never the plain password
		mockRepo.EXPECT().
			CreateUser(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, identity domain.Identity) (string, error) {
				req.Equal("test@example.com", identity.Email)
				req.Equal("Test User", identity.FullName)
				req.NotEqual("ComplexPass123!", identity.PasswordHash)
				return "user-uuid", nil
			}).
			Times(1)

		token, err := svc.Register(ctx, auth.RegisterRequest{
			Email:    "  Test@Example.com ",
			FullName: "Test User",
			Password: "ComplexPass123!",
		})

		req.NoError(err)
		claims, err := tokens.Validate(token.String())
		req.NoError(err)
		req.Equal("user-uuid", claims.UserID)
	})

	t.Run("should fail when password complexity is not met", func(t *testing.T) {
		req := require.New(t)

		// Repository should never be called
		mockRepo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Times(0)

		token, err := svc.Register(ctx, auth.RegisterRequest{
			Email:    "test@example.com",
			FullName: "Test User",
			Password: "simplepassword",
		})

		req.ErrorIs(err, errors.ErrInvalidPassword)
		req.Empty(token)
	})

	t.Run("should fail when user already exists in repository", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			CreateUser(gomock.Any(), gomock.Any()).
			Return("", errors.ErrUserAlreadyExists).
			Times(1)

		_, err := svc.Register(ctx, auth.RegisterRequest{
			Email:    "duplicate@example.com",
			FullName: "Dup",
			Password: "ComplexPass123!",
		})

		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockIUserRepository(ctrl)
	tokens := auth.NewTokens("test-secret", 24*time.Hour)
	svc := NewAuthService(mockRepo, tokens, maxImageBytes)
	ctx := context.Background()

	t.Run("should login successfully with correct credentials", func(t *testing.T) {
		req := require.New(t)
		email := "user@example.com"
		password := "Secret123456!"

		hashedPassword, err := auth.HashPassword(password)
		req.NoError(err)
		storedUser := domain.Identity{
			ID:           "uuid-123",
			Email:        email,
			PasswordHash: hashedPassword,
			Roles:        []string{"user"},
		}

		mockRepo.EXPECT().
			GetUserByEmail(gomock.Any(), email).
			Return(storedUser, nil).
			Times(1)

		token, err := svc.Login(ctx, auth.LoginRequest{Email: email, Password: password})

		req.NoError(err)
		claims, err := tokens.Validate(token.String())
		req.NoError(err)
		req.Equal(storedUser.ID, claims.UserID)
	})

	t.Run("should return invalid credentials when password matches nothing", func(t *testing.T) {
		req := require.New(t)
		email := "user@example.com"

		hashedPassword, err := auth.HashPassword("CorrectPassword123!")
		req.NoError(err)

		mockRepo.EXPECT().
			GetUserByEmail(gomock.Any(), email).
			Return(domain.Identity{Email: email, PasswordHash: hashedPassword}, nil).
			Times(1)

		_, err = svc.Login(ctx, auth.LoginRequest{Email: email, Password: "WrongPassword123!"})

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should return invalid credentials when user is not found", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			GetUserByEmail(gomock.Any(), "unknown@example.com").
			Return(domain.Identity{}, errors.ErrUserNotFound).
			Times(1)

		_, err := svc.Login(ctx, auth.LoginRequest{Email: "unknown@example.com", Password: "anyPassword"})

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})
}

func TestAuthService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	current := domain.Identity{ID: "uuid-123", Email: "user@example.com", FullName: "User", Bio: "old bio"}

	t.Run("should apply only the fields present", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := mocks.NewMockIUserRepository(ctrl)
		svc := NewAuthService(mockRepo, auth.NewTokens("test-secret", time.Hour), maxImageBytes)
		picture := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pixelPNG)
		name := "  New Name  "

		// Given the stored identity
		mockRepo.EXPECT().GetUser(gomock.Any(), "uuid-123").Return(current, nil)
		want := domain.Profile{FullName: "New Name", Bio: "old bio", ProfileImage: picture}
		updated := current
		updated.FullName, updated.ProfileImage = want.FullName, want.ProfileImage
		mockRepo.EXPECT().UpdateProfile(gomock.Any(), "uuid-123", want).Return(updated, nil)

		// When the name and picture are changed
		contact, err := svc.UpdateProfile(ctx, "uuid-123", auth.UpdateProfileRequest{FullName: &name, ProfileImage: &picture})

		// Then the bio is kept and the contact reflects the change
		req.NoError(err)
		req.Equal(updated.Contact(), contact)
	})

	t.Run("should refuse a picture that is not an image", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := mocks.NewMockIUserRepository(ctrl)
		svc := NewAuthService(mockRepo, auth.NewTokens("test-secret", time.Hour), maxImageBytes)
		notAnImage := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("plain text"))

		mockRepo.EXPECT().GetUser(gomock.Any(), "uuid-123").Return(current, nil)

		_, err := svc.UpdateProfile(ctx, "uuid-123", auth.UpdateProfileRequest{ProfileImage: &notAnImage})

		req.ErrorIs(err, errors.ErrInvalidImage)
	})

	t.Run("should refuse a blank name before touching the store", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		svc := NewAuthService(mocks.NewMockIUserRepository(ctrl), auth.NewTokens("test-secret", time.Hour), maxImageBytes)
		blank := "   "

		_, err := svc.UpdateProfile(ctx, "uuid-123", auth.UpdateProfileRequest{FullName: &blank})

		req.ErrorIs(err, errors.ErrMalformedEvent)
	})
}
