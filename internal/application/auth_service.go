package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-ecommerce/internal/domain/entity"
	repo "github.com/oksasatya/go-ddd-ecommerce/internal/domain/repository"
	"github.com/oksasatya/go-ddd-ecommerce/pkg/apperror"
	"github.com/oksasatya/go-ddd-ecommerce/pkg/helpers"
	"github.com/oksasatya/go-ddd-ecommerce/pkg/validation"
)

// DefaultPasswordResetTTL is how long an emailed reset token stays valid.
const DefaultPasswordResetTTL = 10 * time.Minute

// PasswordResetNotifier delivers the password reset email.
type PasswordResetNotifier interface {
	SendPasswordReset(ctx context.Context, to, name, resetURL string) error
}

type AuthService struct {
	Repo     repo.UserRepository
	JWT      *helpers.JWTManager
	Notifier PasswordResetNotifier
	Logger   *logrus.Logger
	ResetTTL time.Duration

	now func() time.Time
}

func NewAuthService(repo repo.UserRepository, jwt *helpers.JWTManager, notifier PasswordResetNotifier, logger *logrus.Logger, resetTTL time.Duration) *AuthService {
	if resetTTL <= 0 {
		resetTTL = DefaultPasswordResetTTL
	}
	return &AuthService{
		Repo:     repo,
		JWT:      jwt,
		Notifier: notifier,
		Logger:   logger,
		ResetTTL: resetTTL,
		now:      time.Now,
	}
}

// WithClock overrides the time source used for reset expiry.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// RegisterInput is the self-registration payload.
type RegisterInput struct {
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Role     entity.Role    `json:"role"`
	Address  entity.Address `json:"address"`
}

// AuthResult is what register, login and reset hand back to the caller.
type AuthResult struct {
	User               *entity.User
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

// PasswordReset carries the plaintext reset token for delivery. Only its digest is stored.
type PasswordReset struct {
	User    *entity.User
	Token   string
	Expires time.Time
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	u := &entity.User{
		Name:     strings.TrimSpace(in.Name),
		Email:    entity.NormalizeEmail(in.Email),
		Password: in.Password,
		Role:     in.Role,
		Address:  in.Address,
	}
	if u.Role == "" {
		u.Role = entity.RoleCustomer
	}

	// the entity holds the hash; the plaintext rule is checked on its own
	fe := fieldErrors{}
	fe.addErr(validation.StructExcept(u, "Password"))
	fe.add(validation.Var("password", in.Password, "required,pwd"))
	if err := fe.err(); err != nil {
		return nil, err
	}

	hash, err := helpers.HashPassword(in.Password)
	if err != nil {
		return nil, internal("hash password", err)
	}
	u.Password = hash

	if err := s.Repo.Create(ctx, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, apperror.Wrap(apperror.KindDuplicateEmail, msgDuplicateEmail, err)
		}
		return nil, internal("create user", err)
	}
	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{"user_id": u.ID, "role": u.Role}).Info("user registered")
	}
	return s.issueTokens(u)
}

// Login reports InvalidCredentials for an unknown email and a wrong password alike.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	fe := fieldErrors{}
	fe.add(validation.Var("email", email, "required"))
	fe.add(validation.Var("password", password, "required"))
	if err := fe.err(); err != nil {
		return nil, err
	}

	u, err := s.Repo.GetByEmail(ctx, entity.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, apperror.New(apperror.KindInvalidCredentials, msgInvalidCredentials)
		}
		return nil, internal("get user by email", err)
	}
	if !helpers.CompareHashAndPassword(u.Password, password) {
		return nil, apperror.New(apperror.KindInvalidCredentials, msgInvalidCredentials)
	}
	return s.issueTokens(u)
}

// Refresh issues a new access token. The refresh token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return "", time.Time{}, apperror.Validation(map[string]string{"refreshToken": "is required"})
	}
	claims, err := s.JWT.ParseRefreshToken(refreshToken)
	if err != nil {
		return "", time.Time{}, tokenError(err)
	}
	u, err := s.Repo.GetByID(ctx, claims.UserID())
	if err != nil {
		return "", time.Time{}, notFound("get user", err, apperror.KindUserNotFound, msgNoUserWithID)
	}
	access, exp, err := s.JWT.GenerateAccessToken(u.ID)
	if err != nil {
		return "", time.Time{}, internal("generate access token", err)
	}
	return access, exp, nil
}

// ForgotPassword stores a fresh reset digest without re-validating the user and
// returns the plaintext token for delivery.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (*PasswordReset, error) {
	if fields := validation.Var("email", email, "required"); fields != nil {
		return nil, apperror.Validation(fields)
	}
	u, err := s.Repo.GetByEmail(ctx, entity.NormalizeEmail(email))
	if err != nil {
		return nil, notFound("get user by email", err, apperror.KindUserNotFound, msgUserNotFound)
	}

	plain, hashed, err := helpers.GenerateResetToken()
	if err != nil {
		return nil, internal("generate reset token", err)
	}
	expires := s.now().Add(s.ResetTTL)
	if err := s.Repo.SetPasswordReset(ctx, u.ID, &hashed, &expires); err != nil {
		return nil, notFound("store reset token", err, apperror.KindUserNotFound, msgUserNotFound)
	}
	u.SetPasswordReset(hashed, expires)
	return &PasswordReset{User: u.Scrubbed(), Token: plain, Expires: expires}, nil
}

// RollbackPasswordReset clears the reset digest and expiry.
func (s *AuthService) RollbackPasswordReset(ctx context.Context, userID string) error {
	if err := s.Repo.SetPasswordReset(ctx, userID, nil, nil); err != nil {
		return notFound("clear reset token", err, apperror.KindUserNotFound, msgNoUserWithID)
	}
	return nil
}

// RequestPasswordReset runs ForgotPassword and then the notifier. When delivery
// fails the stored token is rolled back and NotificationFailed is returned.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string, resetURL func(token string) string) error {
	reset, err := s.ForgotPassword(ctx, email)
	if err != nil {
		return err
	}

	sendErr := errors.New("password reset notifier not configured")
	if s.Notifier != nil {
		sendErr = s.Notifier.SendPasswordReset(ctx, reset.User.Email, reset.User.Name, resetURL(reset.Token))
	}
	if sendErr == nil {
		return nil
	}

	log := s.logEntry().WithField("user_id", reset.User.ID)
	log.WithError(sendErr).Error("send password reset failed")
	if rbErr := s.RollbackPasswordReset(context.WithoutCancel(ctx), reset.User.ID); rbErr != nil {
		log.WithError(rbErr).Error("rollback password reset failed")
	}
	return apperror.Wrap(apperror.KindNotificationFailed, msgEmailFailed, sendErr)
}

// ResetPassword reports TokenInvalid for a wrong and an expired token alike.
func (s *AuthService) ResetPassword(ctx context.Context, plainToken, newPassword string) (*AuthResult, error) {
	u, err := s.Repo.GetByResetToken(ctx, helpers.HashResetToken(plainToken), s.now())
	if err != nil {
		return nil, notFound("get user by reset token", err, apperror.KindTokenInvalid, msgResetTokenInvalid)
	}
	if fields := validation.Var("password", newPassword, "required,pwd"); fields != nil {
		return nil, apperror.Validation(fields)
	}

	hash, err := helpers.HashPassword(newPassword)
	if err != nil {
		return nil, internal("hash password", err)
	}
	u.Password = hash
	u.ClearPasswordReset()
	if err := validation.Struct(u); err != nil {
		return nil, apperror.Validation(validation.ToDetails(err))
	}
	if err := s.Repo.Update(ctx, u); err != nil {
		return nil, notFound("update user", err, apperror.KindTokenInvalid, msgResetTokenInvalid)
	}
	return s.issueTokens(u)
}

// Authenticate resolves the caller behind an access token. The user must still exist.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*entity.User, error) {
	if accessToken == "" {
		return nil, apperror.New(apperror.KindUnauthorized, msgNotLoggedIn)
	}
	claims, err := s.JWT.ParseAccessToken(accessToken)
	if err != nil {
		return nil, tokenError(err)
	}
	u, err := s.Repo.GetByID(ctx, claims.UserID())
	if err != nil {
		return nil, notFound("get user", err, apperror.KindUnauthorized, msgUserGone)
	}
	return u.Scrubbed(), nil
}

func (s *AuthService) Profile(ctx context.Context, userID string) (*entity.User, error) {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound("get user", err, apperror.KindUserNotFound, msgNoUserWithID)
	}
	return u.Scrubbed(), nil
}

func (s *AuthService) issueTokens(u *entity.User) (*AuthResult, error) {
	access, aexp, err := s.JWT.GenerateAccessToken(u.ID)
	if err != nil {
		s.logEntry().WithError(err).WithField("user_id", u.ID).Error("generate access token failed")
		return nil, internal("generate access token", err)
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(u.ID)
	if err != nil {
		s.logEntry().WithError(err).WithField("user_id", u.ID).Error("generate refresh token failed")
		return nil, internal("generate refresh token", err)
	}
	return &AuthResult{
		User:               u.Scrubbed(),
		AccessToken:        access,
		AccessTokenExpiry:  aexp,
		RefreshToken:       refresh,
		RefreshTokenExpiry: rexp,
	}, nil
}

func (s *AuthService) logEntry() *logrus.Entry {
	if s.Logger == nil {
		return logrus.NewEntry(helpers.NewDiscardLogger())
	}
	return logrus.NewEntry(s.Logger)
}
