package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"chat-app/internal/models"
	"chat-app/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrResetDisabled      = errors.New("password reset is not configured")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
)

const (
	resetTokenPrefix = "pwreset:"
	resetTokenTTL    = 15 * time.Minute
)

type AuthService struct {
	users     repository.UserRepository
	rdb       *redis.Client // nil disables password reset
	uploader  ImageUploader // nil disables avatar uploads
	jwtSecret string
	jwtExpire time.Duration
}

func NewAuthService(users repository.UserRepository, rdb *redis.Client, uploader ImageUploader, jwtSecret string, jwtExpire time.Duration) *AuthService {
	return &AuthService{
		users:     users,
		rdb:       rdb,
		uploader:  uploader,
		jwtSecret: jwtSecret,
		jwtExpire: jwtExpire,
	}
}

// Signup creates the account and logs it in.
func (s *AuthService) Signup(ctx context.Context, req models.SignupRequest) (*models.LoginResponse, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:    req.Email,
		FullName: req.FullName,
		Password: string(hashedPassword),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}
	return &models.LoginResponse{Token: token, User: user.ToResponse()}, nil
}

// Login verifies credentials and issues a JWT.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}
	return &models.LoginResponse{Token: token, User: user.ToResponse()}, nil
}

// Check returns the account for an authenticated user id.
func (s *AuthService) Check(ctx context.Context, userID string) (*models.User, error) {
	return s.users.FindByID(ctx, userID)
}

// UpdateProfilePic uploads the new avatar and persists its URL. The caller
// broadcasts the change to connected clients after this returns.
func (s *AuthService) UpdateProfilePic(ctx context.Context, userID string, file *multipart.FileHeader) (*models.User, error) {
	if s.uploader == nil {
		return nil, ErrUploadsDisabled
	}

	url, err := s.uploader.UploadImage(ctx, "avatars", file)
	if err != nil {
		return nil, fmt.Errorf("upload avatar: %w", err)
	}

	if err := s.users.UpdateProfilePic(ctx, userID, url); err != nil {
		return nil, fmt.Errorf("update profile pic: %w", err)
	}
	return s.users.FindByID(ctx, userID)
}

// ForgotPassword issues a short-lived reset token for the account. The token
// is handed to the mail-delivery collaborator; it is never returned to the
// HTTP caller.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	if s.rdb == nil {
		return "", ErrResetDisabled
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		// Do not reveal whether the address exists.
		return "", nil
	}

	token := uuid.New().String()
	if err := s.rdb.Set(ctx, resetTokenPrefix+token, user.ID, resetTokenTTL).Err(); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}
	return token, nil
}

// ResetPassword consumes a reset token and replaces the password.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if s.rdb == nil {
		return ErrResetDisabled
	}

	userID, err := s.rdb.GetDel(ctx, resetTokenPrefix+token).Result()
	if err != nil {
		return ErrInvalidResetToken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, userID, string(hashedPassword))
}

func (s *AuthService) generateToken(user *models.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"exp":   time.Now().Add(s.jwtExpire).Unix(),
	})
	return token.SignedString([]byte(s.jwtSecret))
}
