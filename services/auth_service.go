package services

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"fmt"
	"strings"
)

type Token string

func (t Token) String() string {
	return string(t)
}

type AuthService struct {
	users         contract.IUserRepository
	tokens        *auth.Tokens
	maxImageBytes int
}

func NewAuthService(users contract.IUserRepository, tokens *auth.Tokens, maxImageBytes int) *AuthService {
	return &AuthService{users: users, tokens: tokens, maxImageBytes: maxImageBytes}
}

// Register validates the request before any expensive hashing, stores the identity and opens a session.
func (s *AuthService) Register(ctx context.Context, req auth.RegisterRequest) (Token, error) {
	req.Email = normalizeEmail(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	if err := auth.ValidateRegister(req); err != nil {
		return "", err
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	userID, err := s.users.CreateUser(ctx, domain.Identity{
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: hashedPassword,
		Roles:        []string{"user"},
	})
	if err != nil {
		return "", err
	}

	token, err := s.tokens.Generate(userID, []string{"user"})
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

// Login never tells an unknown email apart from a wrong password.
func (s *AuthService) Login(ctx context.Context, req auth.LoginRequest) (Token, error) {
	req.Email = normalizeEmail(req.Email)
	if err := auth.ValidateLogin(req); err != nil {
		return "", err
	}

	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return "", errors.ErrInvalidCredentials
	}
	match, err := auth.ComparePassword(req.Password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID, user.Roles)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UpdateProfile applies the fields present in req to the profile of userID.
// A profile image follows the same rules as a message image.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, req auth.UpdateProfileRequest) (domain.Contact, error) {
	if req.FullName != nil {
		trimmed := strings.TrimSpace(*req.FullName)
		req.FullName = &trimmed
	}
	if err := auth.ValidateUpdateProfile(req); err != nil {
		return domain.Contact{}, err
	}

	current, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return domain.Contact{}, err
	}
	profile := current.Profile()
	if req.FullName != nil {
		profile.FullName = *req.FullName
	}
	if req.Bio != nil {
		profile.Bio = strings.TrimSpace(*req.Bio)
	}
	if req.ProfileImage != nil {
		if _, err := domain.ValidateImage(*req.ProfileImage, s.maxImageBytes); err != nil {
			return domain.Contact{}, err
		}
		profile.ProfileImage = *req.ProfileImage
	}

	updated, err := s.users.UpdateProfile(ctx, userID, profile)
	if err != nil {
		return domain.Contact{}, err
	}
	return updated.Contact(), nil
}
