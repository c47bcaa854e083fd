// Package service implements accounts, authentication and collections
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/medialibrary/internal/database"
	"github.com/mantonx/medialibrary/internal/logger"
	"github.com/mantonx/medialibrary/internal/modules/usersmodule/auth"
	usererrors "github.com/mantonx/medialibrary/internal/modules/usersmodule/errors"
	"github.com/mantonx/medialibrary/internal/modules/usersmodule/mailer"
	"github.com/mantonx/medialibrary/internal/modules/usersmodule/reset"
	"github.com/mantonx/medialibrary/internal/services"
	"gorm.io/gorm"
)

// Options carries the collaborators of a UserService
type Options struct {
	Tokens  *auth.TokenManager
	Hasher  auth.Hasher
	Mailer  *mailer.Mailer
	Resets  *reset.Store
	Limiter *reset.Limiter
}

// UserService owns accounts and their tokens
type UserService struct {
	db      *gorm.DB
	tokens  *auth.TokenManager
	hasher  auth.Hasher
	mailer  *mailer.Mailer
	resets  *reset.Store
	limiter *reset.Limiter
	log     hclog.Logger
}

var _ services.AuthService = (*UserService)(nil)

// NewUserService creates a user service
func NewUserService(db *gorm.DB, opts Options) *UserService {
	return &UserService{
		db:      db,
		tokens:  opts.Tokens,
		hasher:  opts.Hasher,
		mailer:  opts.Mailer,
		resets:  opts.Resets,
		limiter: opts.Limiter,
		log:     logger.Named("users"),
	}
}

// Registration is a sign-up request
type Registration struct {
	Email     string
	Username  string
	Password1 string
	Password2 string
}

// Register creates an account and returns a token for it
func (s *UserService) Register(ctx context.Context, reg Registration) (string, *database.User, error) {
	email, err := normalizeEmail(reg.Email)
	if err != nil {
		return "", nil, usererrors.New("register", err).WithField("email")
	}
	if err := s.checkUsername(ctx, "register", reg.Username, ""); err != nil {
		return "", nil, err
	}
	if taken, err := s.exists(ctx, "email = ?", email); err != nil {
		return "", nil, usererrors.New("register", err)
	} else if taken {
		return "", nil, usererrors.New("register", usererrors.ErrEmailTaken).WithField("email")
	}
	if reg.Password1 != reg.Password2 {
		return "", nil, usererrors.New("register", usererrors.ErrPasswordMismatch).WithField("password2")
	}

	hash, err := s.hasher.Hash(reg.Password1)
	if err != nil {
		return "", nil, usererrors.New("register", err)
	}
	user := &database.User{Email: email, Username: reg.Username, PasswordHash: hash}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return "", nil, usererrors.New("register", usererrors.ErrUsernameTaken).WithField("username")
		}
		return "", nil, usererrors.New("register", err)
	}

	token, err := s.tokens.Issue(user.ID, user.TokenVersion)
	if err != nil {
		return "", nil, usererrors.New("register", err)
	}
	s.log.Info("user registered", "user", user.ID, "username", user.Username)
	return token, user, nil
}

// Login checks credentials and returns a fresh token. Tokens issued
// before the login stop working.
func (s *UserService) Login(ctx context.Context, email, password string) (string, *database.User, error) {
	var user database.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, usererrors.New("login", usererrors.ErrInvalidCredentials)
	}
	if err != nil {
		return "", nil, usererrors.New("login", err)
	}
	if !s.hasher.Check(user.PasswordHash, password) {
		return "", nil, usererrors.New("login", usererrors.ErrInvalidCredentials)
	}

	now := time.Now().UTC()
	user.LastLogin = &now
	user.TokenVersion++
	if err := s.db.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
		"last_login":    now,
		"token_version": user.TokenVersion,
	}).Error; err != nil {
		return "", nil, usererrors.New("login", err)
	}

	token, err := s.tokens.Issue(user.ID, user.TokenVersion)
	if err != nil {
		return "", nil, usererrors.New("login", err)
	}
	return token, &user, nil
}

// Authenticate resolves a token to its user
func (s *UserService) Authenticate(ctx context.Context, token string) (*database.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, usererrors.New("authenticate", fmt.Errorf("%w: %v", usererrors.ErrInvalidToken, err))
	}
	var user database.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", claims.UserID).Error; err != nil {
		return nil, usererrors.New("authenticate", usererrors.ErrInvalidToken)
	}
	if user.TokenVersion != claims.Version {
		return nil, usererrors.New("authenticate", usererrors.ErrInvalidToken)
	}
	return &user, nil
}

// PasswordChange is a change_password request
type PasswordChange struct {
	OldPassword     string
	NewPassword     string
	ConfirmPassword string
}

// ChangePassword replaces user's password after checking the old one.
// Existing tokens are invalidated.
func (s *UserService) ChangePassword(ctx context.Context, user *database.User, req PasswordChange) error {
	if req.NewPassword != req.ConfirmPassword {
		return usererrors.New("change_password", usererrors.ErrPasswordMismatch).WithField("confirm_password")
	}
	if req.NewPassword == req.OldPassword {
		return usererrors.New("change_password", usererrors.ErrSamePassword).WithField("new_password")
	}
	if !s.hasher.Check(user.PasswordHash, req.OldPassword) {
		return usererrors.New("change_password", usererrors.ErrWrongPassword).WithField("old_password")
	}
	if err := s.setPassword(ctx, user.ID, req.NewPassword); err != nil {
		return usererrors.New("change_password", err)
	}
	s.log.Info("password changed", "user", user.ID)
	return nil
}

// RequestReset mails a temporary password and a confirmation link built by
// confirmURL. One request per email is allowed per limiter window.
func (s *UserService) RequestReset(ctx context.Context, email string, confirmURL func(token string) string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return usererrors.New("reset_password", err).WithField("email")
	}
	var user database.User
	err = s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return usererrors.New("reset_password", usererrors.ErrUnknownEmail).WithField("email")
	}
	if err != nil {
		return usererrors.New("reset_password", err)
	}
	if !s.limiter.Allow(email) {
		return usererrors.New("reset_password", usererrors.ErrResetThrottled)
	}

	temp := rand.Text()[:12]
	token := s.resets.Put(reset.Entry{UserID: user.ID, Email: user.Email, TempPassword: temp})
	s.mailer.SendPasswordReset(ctx, user.Email, confirmURL(token), temp, s.resets.TTL())
	s.log.Info("password reset requested", "user", user.ID)
	return nil
}

// ConfirmReset activates the temporary password stored under token
func (s *UserService) ConfirmReset(ctx context.Context, token string) error {
	entry, ok := s.resets.Take(token)
	if !ok {
		return usererrors.New("password_reset_confirm", usererrors.ErrInvalidToken)
	}
	if err := s.setPassword(ctx, entry.UserID, entry.TempPassword); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return usererrors.New("password_reset_confirm", usererrors.ErrInvalidToken)
		}
		return usererrors.New("password_reset_confirm", err)
	}
	s.log.Info("password reset confirmed", "user", entry.UserID)
	return nil
}

// Query returns a query over users, for listing
func (s *UserService) Query(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&database.User{})
}

// Get loads one user
func (s *UserService) Get(ctx context.Context, id string) (*database.User, error) {
	var user database.User
	err := s.db.WithContext(ctx).Preload("Avatar").First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, usererrors.New("get", usererrors.ErrNotFound)
	}
	if err != nil {
		return nil, usererrors.New("get", err)
	}
	return &user, nil
}

// ProfileUpdate holds editable profile fields; nil keeps the current value.
// Email is read-only.
type ProfileUpdate struct {
	Username *string
	AvatarID *uint
}

// UpdateProfile edits actor's own profile
func (s *UserService) UpdateProfile(ctx context.Context, actor *database.User, id string, upd ProfileUpdate) (*database.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.ID != actor.ID {
		return nil, usererrors.New("update", usererrors.ErrForeignProfile)
	}

	changes := map[string]interface{}{}
	if upd.Username != nil && *upd.Username != user.Username {
		if err := s.checkUsername(ctx, "update", *upd.Username, user.ID); err != nil {
			return nil, err
		}
		changes["username"] = *upd.Username
	}
	if upd.AvatarID != nil {
		changes["avatar_id"] = *upd.AvatarID
	}
	if len(changes) > 0 {
		if err := s.db.WithContext(ctx).Model(user).Updates(changes).Error; err != nil {
			return nil, usererrors.New("update", err)
		}
	}
	return s.Get(ctx, id)
}

func (s *UserService) setPassword(ctx context.Context, userID, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&database.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"password_hash": hash,
		"token_version": gorm.Expr("token_version + 1"),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *UserService) checkUsername(ctx context.Context, op, username, exceptID string) error {
	username = strings.TrimSpace(username)
	if username == "" || len(username) > 45 {
		return usererrors.New(op, usererrors.ErrInvalidUsername).WithField("username")
	}
	query := "username = ?"
	args := []interface{}{username}
	if exceptID != "" {
		query += " AND id <> ?"
		args = append(args, exceptID)
	}
	taken, err := s.exists(ctx, query, args...)
	if err != nil {
		return usererrors.New(op, err)
	}
	if taken {
		return usererrors.New(op, usererrors.ErrUsernameTaken).WithField("username")
	}
	return nil
}

func (s *UserService) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&database.User{}).Where(query, args...).Count(&count).Error
	return count > 0, err
}

func normalizeEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Name != "" {
		return "", usererrors.ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}
