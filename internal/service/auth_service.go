package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"time"

	"taskhub/internal/cache"
	"taskhub/internal/middleware"
	"taskhub/internal/models"
	"taskhub/internal/observability"
	"taskhub/internal/repository"
	"taskhub/internal/validation"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// PasswordResetTTL is how long a reset token stays usable.
const PasswordResetTTL = 2 * time.Hour

// ErrEmailNotVerified is returned by Login when the account still needs verification.
var ErrEmailNotVerified = models.NewUnauthorizedError("Please verify your email before logging in.")

// Mailer sends account emails.
type Mailer interface {
	SendVerification(ctx context.Context, user *models.User) error
	SendPasswordReset(ctx context.Context, user *models.User) error
}

// AuthService owns signup, login, verification, password reset and token revocation.
type AuthService struct {
	userRepo            repository.UserRepository
	tokens              *Tokens
	mailer              Mailer
	rdb                 *redis.Client
	requireVerification bool
	hashCost            int
	now                 func() time.Time
}

type SignupInput struct {
	Username string
	Email    string
	Password string
	Public   *bool
}

type LoginInput struct {
	Login    string
	Password string
}

// AuthResult carries the account and, when one was issued, its access token.
type AuthResult struct {
	User  *models.User
	Token string
}

func NewAuthService(
	userRepo repository.UserRepository,
	tokens *Tokens,
	mailer Mailer,
	rdb *redis.Client,
	requireVerification bool,
) *AuthService {
	return &AuthService{
		userRepo:            userRepo,
		tokens:              tokens,
		mailer:              mailer,
		rdb:                 rdb,
		requireVerification: requireVerification,
		hashCost:            bcrypt.DefaultCost,
		now:                 time.Now,
	}
}

// RequiresVerification reports whether unverified accounts are refused at login.
func (s *AuthService) RequiresVerification() bool {
	return s.requireVerification
}

// Signup registers an account. A token is only issued when verification is switched off.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	username := strings.TrimSpace(in.Username)
	email := validation.NormalizeEmail(in.Email)

	if err := models.NewValidationErrors(validation.ValidateAccount(username, email, in.Password)...); err != nil {
		observability.AuthEvents.WithLabelValues("signup", "invalid").Inc()
		return nil, err
	}
	if err := checkAvailable(ctx, s.userRepo, username, email, 0); err != nil {
		observability.AuthEvents.WithLabelValues("signup", "invalid").Inc()
		return nil, err
	}

	digest, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:       username,
		Email:          email,
		PasswordDigest: digest,
		Public:         true,
	}
	if in.Public != nil {
		user.Public = *in.Public
	}

	now := s.now().UTC()
	if s.requireVerification {
		token, err := newURLToken()
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		user.EmailVerificationToken = &token
		user.EmailVerificationSentAt = &now
	} else {
		user.EmailVerifiedAt = &now
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	observability.Audit(ctx, "signup", user.ID, nil)

	result := &AuthResult{User: user}
	if s.requireVerification {
		// The account exists either way; a failed send can be retried via resend_verification.
		if err := s.mailer.SendVerification(ctx, user); err != nil {
			middleware.Logger.WarnContext(ctx, "verification mail failed",
				slog.Uint64("user_id", uint64(user.ID)),
				slog.String("error", err.Error()),
			)
		}
		return result, nil
	}

	if result.Token, err = s.tokens.Issue(user.ID); err != nil {
		return nil, models.NewInternalError(err)
	}
	return result, nil
}

// Login authenticates by email or username.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	login := strings.TrimSpace(in.Login)
	if login == "" || in.Password == "" {
		observability.AuthEvents.WithLabelValues("login", "invalid").Inc()
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}

	user, err := s.userRepo.GetByLogin(ctx, login)
	if err != nil {
		return nil, err
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordDigest), []byte(in.Password)) != nil {
		observability.AuthEvents.WithLabelValues("login", "invalid").Inc()
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if s.requireVerification && !user.EmailVerified() {
		observability.AuthEvents.WithLabelValues("login", "unverified").Inc()
		return nil, ErrEmailNotVerified
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	observability.Audit(ctx, "login", user.ID, nil)
	return &AuthResult{User: user, Token: token}, nil
}

// VerifyEmail consumes a verification token and signs the user in.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*AuthResult, error) {
	user, err := s.userRepo.GetByVerificationToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return nil, err
	}
	if user == nil {
		observability.AuthEvents.WithLabelValues("verify_email", "invalid").Inc()
		return nil, models.NewValidationError("Invalid verification token")
	}

	now := s.now().UTC()
	user.EmailVerifiedAt = &now
	user.EmailVerificationToken = nil
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	cache.InvalidateUserProfile(ctx, s.rdb, user.ID)

	jwtToken, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	observability.Audit(ctx, "verify_email", user.ID, nil)
	return &AuthResult{User: user, Token: jwtToken}, nil
}

// ResendVerification issues a fresh verification token and mails it.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		return err
	}
	if user == nil {
		return models.NewNotFoundMessage("User not found")
	}
	if user.EmailVerified() {
		return models.NewValidationError("Email is already verified")
	}

	if err := s.issueVerification(ctx, user); err != nil {
		return err
	}
	if err := s.mailer.SendVerification(ctx, user); err != nil {
		return models.NewInternalError(err)
	}
	observability.Audit(ctx, "resend_verification", user.ID, nil)
	return nil
}

// ForgotPassword stores a reset token and mails the reset link.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		return err
	}
	if user == nil {
		return models.NewNotFoundMessage("User not found")
	}

	token, err := newURLToken()
	if err != nil {
		return models.NewInternalError(err)
	}
	now := s.now().UTC()
	user.PasswordResetToken = &token
	user.PasswordResetSentAt = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(ctx, user); err != nil {
		return models.NewInternalError(err)
	}
	observability.Audit(ctx, "forgot_password", user.ID, nil)
	return nil
}

// ResetPassword sets a new password when token is known and younger than PasswordResetTTL.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	user, err := s.userRepo.GetByResetToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return err
	}
	if user == nil || !user.PasswordResetValid(s.now(), PasswordResetTTL) {
		observability.AuthEvents.WithLabelValues("reset_password", "invalid").Inc()
		return models.NewValidationError("Invalid or expired reset token")
	}
	if err := validation.ValidatePassword(password); err != nil {
		return models.NewValidationError(err.Error())
	}

	digest, err := s.hashPassword(password)
	if err != nil {
		return err
	}
	user.PasswordDigest = digest
	user.PasswordResetToken = nil
	user.PasswordResetSentAt = nil
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}
	observability.Audit(ctx, "reset_password", user.ID, nil)
	return nil
}

// CurrentUser loads the authenticated account.
func (s *AuthService) CurrentUser(ctx context.Context, userID uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// Authenticate verifies a bearer token and rejects revoked ones.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (*TokenClaims, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, err
	}
	revoked, err := s.IsRevoked(ctx, claims.JTI)
	if err != nil {
		// Redis trouble must not lock everyone out.
		middleware.Logger.WarnContext(ctx, "token revocation check failed", slog.String("error", err.Error()))
	}
	if revoked {
		return nil, models.NewUnauthorizedError("Token has been revoked")
	}
	return claims, nil
}

// Logout revokes the token's jti until the token would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, claims *TokenClaims) error {
	if claims == nil || claims.JTI == "" || s.rdb == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, cache.RevokedTokenKey(claims.JTI), "1", ttl).Err(); err != nil {
		return models.NewInternalError(err)
	}
	observability.Audit(ctx, "logout", claims.UserID, nil)
	return nil
}

// IsRevoked reports whether jti was revoked by Logout.
func (s *AuthService) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" || s.rdb == nil {
		return false, nil
	}
	n, err := s.rdb.Exists(ctx, cache.RevokedTokenKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IssueToken signs a token for userID; used by the OAuth callback.
func (s *AuthService) IssueToken(userID uint) (string, error) {
	return s.tokens.Issue(userID)
}

func (s *AuthService) issueVerification(ctx context.Context, user *models.User) error {
	token, err := newURLToken()
	if err != nil {
		return models.NewInternalError(err)
	}
	now := s.now().UTC()
	user.EmailVerificationToken = &token
	user.EmailVerificationSentAt = &now
	return s.userRepo.Update(ctx, user)
}

// checkAvailable checks username and email uniqueness ahead of the write so both
// failures are reported together. The unique indexes still guard against races.
func checkAvailable(ctx context.Context, users repository.UserRepository, username, email string, exceptID uint) error {
	var errs []string
	if username != "" {
		taken, err := users.UsernameTaken(ctx, username, exceptID)
		if err != nil {
			return err
		}
		if taken {
			errs = append(errs, "Username has already been taken")
		}
	}
	if email != "" {
		taken, err := users.EmailTaken(ctx, email, exceptID)
		if err != nil {
			return err
		}
		if taken {
			errs = append(errs, "Email has already been taken")
		}
	}
	if err := models.NewValidationErrors(errs...); err != nil {
		return err
	}
	return nil
}

func (s *AuthService) hashPassword(password string) (string, error) {
	return hashPassword(password, s.hashCost)
}

func hashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", models.NewValidationError("password is too long")
		}
		return "", models.NewInternalError(err)
	}
	return string(hashed), nil
}

// newURLToken returns 32 random bytes encoded as unpadded base64url.
func newURLToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
