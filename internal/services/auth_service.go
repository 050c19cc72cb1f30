package services

import (
	"context"
	"errors"
	"time"

	"github.com/DanielTwine/smartshare/internal/models"
	"github.com/DanielTwine/smartshare/internal/utils"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// AuthService issues the owner identity the vault consumes. The vault itself
// only ever sees the opaque user id string.
type AuthService struct {
	users  *mongo.Collection
	secret string
}

func NewAuthService(db *mongo.Database, secret string) *AuthService {
	return &AuthService{users: db.Collection("users"), secret: secret}
}

// GenerateJWT signs a token carrying the user id.
func (a *AuthService) GenerateJWT(userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(4 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.secret))
}

// Register creates a new user with a bcrypt-hashed password.
func (a *AuthService) Register(ctx context.Context, email, password string) (models.User, error) {
	var existing models.User
	err := a.users.FindOne(ctx, bson.M{"email": email}).Decode(&existing)
	if err == nil {
		return models.User{}, errors.New("email already in use")
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, err
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		ID:        primitive.NewObjectID(),
		Email:     email,
		Password:  hashed,
		CreatedAt: time.Now(),
	}
	if _, err := a.users.InsertOne(ctx, user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// Login authenticates a user and returns a signed JWT.
func (a *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	var user models.User
	if err := a.users.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		return "", errors.New("invalid credentials")
	}
	if !utils.VerifyPassword(password, user.Password) {
		return "", errors.New("invalid credentials")
	}
	return a.GenerateJWT(user.ID.Hex())
}
