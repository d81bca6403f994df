package services

import (
	"errors"
	"fmt"
	"time"

	"task-reminder/backend/internal/models"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type AuthService interface {
	RegisterUser(db *gorm.DB, username, email, password string) (*models.User, error)
	LoginUser(db *gorm.DB, username, password string) (*models.User, error)
	GenerateToken(userID uuid.UUID) (string, error)
}

type AuthServiceImpl struct {
	jwtSecret  string
	tokenTTL   time.Duration
	bcryptCost int
}

func NewAuthService(jwtSecret string, tokenTTL time.Duration, bcryptCost int) *AuthServiceImpl {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if tokenTTL == 0 {
		tokenTTL = time.Hour
	}
	return &AuthServiceImpl{jwtSecret: jwtSecret, tokenTTL: tokenTTL, bcryptCost: bcryptCost}
}

func (s *AuthServiceImpl) RegisterUser(db *gorm.DB, username, email, password string) (*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := models.User{
		ID:       uuid.Must(uuid.NewV4()),
		Username: username,
		Email:    email,
		Password: string(hashed),
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

func (s *AuthServiceImpl) LoginUser(db *gorm.DB, username, password string) (*models.User, error) {
	var user models.User
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

func (s *AuthServiceImpl) GenerateToken(userID uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"exp":     time.Now().Add(s.tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}
