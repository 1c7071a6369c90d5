package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/KAsare1/pesb-server/cmd/models"
	"github.com/KAsare1/pesb-server/cmd/utils"
	"github.com/KAsare1/pesb-server/db"
	"github.com/KAsare1/pesb-server/service/auth"
)

type RegisterRequest struct {
	FullName string `json:"fullName" validate:"min=2,max=255"`
	Email    string `json:"email" validate:"required,max=255,basic_email"`
	Password string `json:"password" validate:"min=8,bcrypt_len"`
	Phone    string `json:"phone" validate:"omitempty,phone"`
}

type LoginResult struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// Store is the credential store: it owns the users table and turns valid
// credentials into session tokens.
type Store struct {
	db        *gorm.DB
	issuer    *auth.Issuer
	cost      int
	dummyHash []byte
}

func NewStore(db *gorm.DB, issuer *auth.Issuer, bcryptCost int) (*Store, error) {
	// Unknown emails are checked against this hash so they cost as much as
	// a wrong password.
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare password hashing: %w", err)
	}
	return &Store{db: db, issuer: issuer, cost: bcryptCost, dummyHash: dummy}, nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register validates req and creates the user, returning its id.
func (s *Store) Register(ctx context.Context, req RegisterRequest) (uint, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = NormalizeEmail(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	if err := utils.ValidateStruct(req); err != nil {
		return 0, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		return 0, utils.Storage("failed to check email", err)
	}
	if count > 0 {
		return 0, utils.Conflict("email", "email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return 0, utils.Validation(map[string]string{"password": "password must be at most 72 bytes"})
		}
		return 0, utils.Storage("failed to hash password", err)
	}

	user := models.User{
		FullName:     req.FullName,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
	}
	if req.Phone != "" {
		user.Phone = &req.Phone
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return 0, utils.Conflict("email", "email already registered")
		}
		return 0, utils.Storage("failed to create user", err)
	}
	return user.ID, nil
}

// Login checks credentials. Unknown email and wrong password produce the
// same error.
func (s *Store) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, utils.BadRequest("email and password are required")
	}
	if !utils.ValidEmail(email) {
		return nil, utils.BadRequest("email is malformed")
	}

	invalid := utils.Unauthorized("invalid credentials")

	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		if utils.KindOf(err) != utils.KindNotFound {
			return nil, err
		}
		bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, invalid
	}

	token, err := s.issuer.Issue(utils.Identity{UserID: user.ID, Email: user.Email, FullName: user.FullName})
	if err != nil {
		return nil, utils.Storage("failed to issue token", err)
	}
	return &LoginResult{User: user, Token: token}, nil
}

func (s *Store) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("user not found")
		}
		return nil, utils.Storage("failed to load user", err)
	}
	return &user, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("user not found")
		}
		return nil, utils.Storage("failed to load user", err)
	}
	return &user, nil
}

// RoleOf is an auth.RoleLookup backed by the users table. Missing users
// have no role.
func (s *Store) RoleOf(ctx context.Context, id uint) (string, error) {
	user, err := s.FindByID(ctx, id)
	if err != nil {
		if utils.KindOf(err) == utils.KindNotFound {
			return "", nil
		}
		return "", err
	}
	return user.Role, nil
}

// SetRole changes a user's role and returns the updated user.
func (s *Store) SetRole(ctx context.Context, id uint, role string) (*models.User, error) {
	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, utils.Validation(map[string]string{"role": "role must be one of: user admin"})
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("role", role)
	if res.Error != nil {
		return nil, utils.Storage("failed to update role", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, utils.NotFound("user not found")
	}
	return s.FindByID(ctx, id)
}
