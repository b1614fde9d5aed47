package repository

import (
	"context"

	"gorm.io/gorm"

	"chat-app/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListExcept(ctx context.Context, userID string) ([]models.User, error)
	UpdateProfilePic(ctx context.Context, userID, url string) error
	UpdatePassword(ctx context.Context, userID, hashedPassword string) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ListExcept returns every user except the requester, for the sidebar roster.
func (r *userRepository) ListExcept(ctx context.Context, userID string) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Where("id <> ?", userID).Order("full_name").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) UpdateProfilePic(ctx context.Context, userID, url string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("profile_pic", url).Error
}

func (r *userRepository) UpdatePassword(ctx context.Context, userID, hashedPassword string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("password", hashedPassword).Error
}
