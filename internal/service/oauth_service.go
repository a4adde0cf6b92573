package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"taskhub/internal/cache"
	"taskhub/internal/models"
	"taskhub/internal/observability"
	"taskhub/internal/repository"
	"taskhub/internal/validation"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// GoogleProfile is the subset of the OpenID userinfo response TaskHub needs.
type GoogleProfile struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// GoogleProvider performs the OAuth2 code flow against Google.
type GoogleProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*GoogleProfile, error)
}

type googleProvider struct {
	cfg         *oauth2.Config
	userInfoURL string
}

// NewGoogleProvider configures the Google code flow with the openid, email and profile scopes.
func NewGoogleProvider(clientID, clientSecret, redirectURL string) GoogleProvider {
	return &googleProvider{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: googleUserInfoURL,
	}
}

func (p *googleProvider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

func (p *googleProvider) Exchange(ctx context.Context, code string) (*GoogleProfile, error) {
	token, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.cfg.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch userinfo: status %d", resp.StatusCode)
	}

	var profile GoogleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	return &profile, nil
}

// OAuthService signs users in with Google.
type OAuthService struct {
	userRepo repository.UserRepository
	provider GoogleProvider
	auth     *AuthService
	rdb      *redis.Client
	now      func() time.Time
}

func NewOAuthService(userRepo repository.UserRepository, provider GoogleProvider, auth *AuthService, rdb *redis.Client) *OAuthService {
	return &OAuthService{userRepo: userRepo, provider: provider, auth: auth, rdb: rdb, now: time.Now}
}

// BeginGoogle stores a one-time state in Redis and returns the consent URL.
func (s *OAuthService) BeginGoogle(ctx context.Context) (string, error) {
	if s.rdb == nil {
		return "", models.NewInternalError(errors.New("oauth state store unavailable"))
	}
	state := uuid.NewString()
	if err := s.rdb.Set(ctx, cache.OAuthStateKey(state), "1", cache.OAuthStateTTL).Err(); err != nil {
		return "", models.NewInternalError(err)
	}
	return s.provider.AuthCodeURL(state), nil
}

// CompleteGoogle consumes state, exchanges code and returns the signed-in account.
func (s *OAuthService) CompleteGoogle(ctx context.Context, code, state string) (*AuthResult, error) {
	if code == "" || state == "" {
		return nil, models.NewValidationError("code and state are required")
	}
	if s.rdb == nil {
		return nil, models.NewInternalError(errors.New("oauth state store unavailable"))
	}

	if err := s.rdb.GetDel(ctx, cache.OAuthStateKey(state)).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			observability.AuthEvents.WithLabelValues("oauth_google", "invalid").Inc()
			return nil, models.NewUnauthorizedError("Invalid or expired OAuth state")
		}
		return nil, models.NewInternalError(err)
	}

	profile, err := s.provider.Exchange(ctx, code)
	if err != nil {
		observability.AuthEvents.WithLabelValues("oauth_google", "error").Inc()
		return nil, models.NewUnauthorizedError("Google sign-in failed")
	}
	if profile.Subject == "" || profile.Email == "" {
		return nil, models.NewUnauthorizedError("Google account has no email")
	}

	user, err := s.resolveUser(ctx, profile)
	if err != nil {
		return nil, err
	}

	token, err := s.auth.IssueToken(user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	observability.Audit(ctx, "oauth_google", user.ID, nil)
	return &AuthResult{User: user, Token: token}, nil
}

// resolveUser matches by Google subject, then links by email, then registers.
func (s *OAuthService) resolveUser(ctx context.Context, profile *GoogleProfile) (*models.User, error) {
	user, err := s.userRepo.GetByGoogleSubject(ctx, profile.Subject)
	if err != nil || user != nil {
		return user, err
	}

	email := validation.NormalizeEmail(profile.Email)
	now := s.now().UTC()
	subject := profile.Subject

	user, err = s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		user.GoogleSubject = &subject
		if !user.EmailVerified() {
			user.EmailVerifiedAt = &now
			user.EmailVerificationToken = nil
		}
		if err := s.userRepo.Update(ctx, user); err != nil {
			return nil, err
		}
		cache.InvalidateUserProfile(ctx, s.rdb, user.ID)
		return user, nil
	}

	username, err := s.uniqueUsername(ctx, email)
	if err != nil {
		return nil, err
	}
	// The account has no usable password until the owner runs a reset.
	random, err := newURLToken()
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	digest, err := s.auth.hashPassword(random)
	if err != nil {
		return nil, err
	}

	user = &models.User{
		Username:        username,
		Email:           email,
		PasswordDigest:  digest,
		Public:          true,
		EmailVerifiedAt: &now,
		GoogleSubject:   &subject,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

var usernameUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_.\-]+`)

// deriveUsername turns the local part of email into a valid username base.
func deriveUsername(email string) string {
	local, _, _ := strings.Cut(email, "@")
	base := usernameUnsafe.ReplaceAllString(local, "")
	if len(base) < validation.MinUsernameLength {
		base = "user" + base
	}
	if len(base) > validation.MaxUsernameLength-4 {
		base = base[:validation.MaxUsernameLength-4]
	}
	if validation.ValidateUsername(base) != nil {
		base = "user_" + base
	}
	return base
}

func (s *OAuthService) uniqueUsername(ctx context.Context, email string) (string, error) {
	base := deriveUsername(email)
	candidate := base
	for i := 1; i <= 100; i++ {
		taken, err := s.userRepo.UsernameTaken(ctx, candidate, 0)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + strconv.Itoa(i)
	}
	return base + uuid.NewString()[:4], nil
}
