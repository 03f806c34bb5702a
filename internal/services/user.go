package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/markjakearzadon/globalfund-gobackend/internal/models"
	"github.com/markjakearzadon/globalfund-gobackend/internal/store"
)

const minPasswordLength = 8

// Claims are carried by dashboard session tokens.
type Claims struct {
	Role           string `json:"role"`
	OrganizationID string `json:"org,omitempty"`
	jwt.RegisteredClaims
}

type UserService struct {
	users  store.UserStore
	orgs   store.OrganizationStore
	secret []byte
	ttl    time.Duration
	log    *logrus.Entry
	now    func() time.Time
}

func NewUserService(st store.Store, secret string, ttl time.Duration, log *logrus.Logger) *UserService {
	return &UserService{
		users:  st,
		orgs:   st,
		secret: []byte(secret),
		ttl:    ttl,
		log:    log.WithField("service", "user"),
		now:    time.Now,
	}
}

func (s *UserService) CreateUser(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	if len(req.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}

	user := &models.User{
		ID:        primitive.NewObjectID(),
		FullName:  strings.TrimSpace(req.FullName),
		Email:     email,
		Role:      req.Role,
		CreatedAt: s.now(),
	}
	switch req.Role {
	case models.RoleDeveloper:
	case models.RoleOrganization:
		orgID, err := parseID(req.OrganizationID, "organization")
		if err != nil {
			return nil, err
		}
		if _, err := s.orgs.GetOrganization(ctx, orgID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrOrganizationNotFound
			}
			return nil, fmt.Errorf("failed to fetch organization: %w", err)
		}
		user.OrganizationID = &orgID
	default:
		return nil, fmt.Errorf("%w: role must be developer or organization", ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user.HPassword = string(hash)

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		s.log.WithError(err).WithField("email", maskEmail(email)).Error("failed to create user")
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.log.WithFields(logrus.Fields{"user_id": user.ID.Hex(), "role": user.Role}).Info("user created")
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	objID, err := parseID(id, "user")
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUser(ctx, objID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return user, nil
}

// Login checks the password and issues a signed session token.
func (s *UserService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HPassword), []byte(password)); err != nil {
		s.log.WithField("email", maskEmail(email)).Warn("failed login attempt")
		return "", nil, ErrInvalidCredentials
	}

	now := s.now()
	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	if user.OrganizationID != nil {
		claims.OrganizationID = user.OrganizationID.Hex()
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, user, nil
}

// ParseToken validates a session token and returns its claims.
func (s *UserService) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func maskEmail(email string) string {
	parts := strings.SplitN(email, "@", 2)
	if len(parts) != 2 || len(parts[0]) <= 3 {
		return "****"
	}
	return parts[0][:3] + "****@" + parts[1]
}
