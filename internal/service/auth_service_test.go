package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"taskhub/internal/cache"
	"taskhub/internal/testutil"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-that-is-long-enough-123"

func newAuthService(t *testing.T, rdb *redis.Client, requireVerification bool) (*AuthService, *repos, *mailerStub) {
	t.Helper()
	r := newRepos(t)
	mail := &mailerStub{}
	svc := NewAuthService(r.users, NewTokens(testSecret, time.Hour), mail, rdb, requireVerification)
	svc.hashCost = bcrypt.MinCost
	return svc, r, mail
}

func TestTokens_RoundTrip(t *testing.T) {
	t.Parallel()
	tokens := NewTokens(testSecret, time.Hour)

	raw, err := tokens.Issue(42)
	require.NoError(t, err)

	claims, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.NotEmpty(t, claims.JTI)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
}

func TestTokens_Rejects(t *testing.T) {
	t.Parallel()
	tokens := NewTokens(testSecret, time.Hour)

	forge := func(claims jwt.MapClaims, secret string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt"},
		{"wrong secret", forge(jwt.MapClaims{"sub": "1", "iss": TokenIssuer, "aud": TokenAudience, "exp": exp}, "other-secret")},
		{"wrong audience", forge(jwt.MapClaims{"sub": "1", "iss": TokenIssuer, "aud": "someone-else", "exp": exp}, testSecret)},
		{"wrong issuer", forge(jwt.MapClaims{"sub": "1", "iss": "elsewhere", "aud": TokenAudience, "exp": exp}, testSecret)},
		{"no expiry", forge(jwt.MapClaims{"sub": "1", "iss": TokenIssuer, "aud": TokenAudience}, testSecret)},
		{"zero subject", forge(jwt.MapClaims{"sub": "0", "iss": TokenIssuer, "aud": TokenAudience, "exp": exp}, testSecret)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tokens.Parse(tt.raw)
			assertUnauthorizedError(t, err)
		})
	}

	t.Run("expired", func(t *testing.T) {
		old := NewTokens(testSecret, time.Minute)
		old.now = func() time.Time { return time.Now().Add(-time.Hour) }
		raw, err := old.Issue(1)
		require.NoError(t, err)
		_, err = tokens.Parse(raw)
		assertUnauthorizedError(t, err)
	})
}

func TestAuthService_Signup(t *testing.T) {
	t.Parallel()

	t.Run("with verification", func(t *testing.T) {
		t.Parallel()
		svc, r, mail := newAuthService(t, nil, true)

		res, err := svc.Signup(context.Background(), SignupInput{
			Username: "alice",
			Email:    " Alice@Example.com ",
			Password: "secret123",
		})
		require.NoError(t, err)
		assert.Empty(t, res.Token)
		assert.Equal(t, "alice@example.com", res.User.Email)
		assert.False(t, res.User.EmailVerified())
		require.NotNil(t, res.User.EmailVerificationToken)
		assert.Len(t, *res.User.EmailVerificationToken, 43)
		assert.Equal(t, []string{"alice@example.com"}, mail.verifications)

		stored, err := r.users.GetByID(context.Background(), res.User.ID)
		require.NoError(t, err)
		assert.NotEqual(t, "secret123", stored.PasswordDigest)
	})

	t.Run("without verification", func(t *testing.T) {
		t.Parallel()
		svc, _, mail := newAuthService(t, nil, false)

		res, err := svc.Signup(context.Background(), SignupInput{
			Username: "bob",
			Email:    "bob@example.com",
			Password: "secret123",
			Public:   boolPtr(false),
		})
		require.NoError(t, err)
		assert.NotEmpty(t, res.Token)
		assert.True(t, res.User.EmailVerified())
		assert.False(t, res.User.Public)
		assert.Empty(t, mail.verifications)
	})

	t.Run("mail failure keeps the account", func(t *testing.T) {
		t.Parallel()
		svc, _, mail := newAuthService(t, nil, true)
		mail.err = errors.New("smtp down")

		res, err := svc.Signup(context.Background(), SignupInput{Username: "carol", Email: "carol@example.com", Password: "secret123"})
		require.NoError(t, err)
		assert.NotZero(t, res.User.ID)
	})

	t.Run("invalid and taken", func(t *testing.T) {
		t.Parallel()
		svc, r, _ := newAuthService(t, nil, true)
		testutil.CreateUser(t, r.db, "dave", true)

		_, err := svc.Signup(context.Background(), SignupInput{Username: "x!", Email: "nope", Password: "123"})
		appErr := assertValidationError(t, err)
		assert.Len(t, appErr.Fields, 3)

		_, err = svc.Signup(context.Background(), SignupInput{Username: "dave", Email: "dave@example.com", Password: "secret123"})
		appErr = assertValidationError(t, err)
		assert.Equal(t, []string{"Username has already been taken", "Email has already been taken"}, appErr.Fields)
	})

	t.Run("password over the bcrypt limit", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newAuthService(t, nil, true)

		_, err := svc.Signup(context.Background(), SignupInput{Username: "erin", Email: "erin@example.com", Password: strings.Repeat("p", 100)})
		appErr := assertValidationError(t, err)
		assert.Equal(t, []string{"password must not exceed 72 bytes"}, appErr.Fields)

		res, err := svc.Signup(context.Background(), SignupInput{Username: "erin", Email: "erin@example.com", Password: strings.Repeat("p", 72)})
		require.NoError(t, err)
		assert.NotZero(t, res.User.ID)
	})
}

func TestAuthService_Login(t *testing.T) {
	t.Parallel()
	svc, r, _ := newAuthService(t, nil, true)
	ctx := context.Background()
	verified := testutil.CreateUser(t, r.db, "erin", true)
	now := time.Now()
	verified.EmailVerifiedAt = &now
	require.NoError(t, r.users.Update(ctx, verified))
	testutil.CreateUser(t, r.db, "frank", true)

	for _, login := range []string{"erin", "erin@example.com"} {
		res, err := svc.Login(ctx, LoginInput{Login: login, Password: "password"})
		require.NoError(t, err, login)
		assert.Equal(t, verified.ID, res.User.ID)
		assert.NotEmpty(t, res.Token)
	}

	_, err := svc.Login(ctx, LoginInput{Login: "erin", Password: "wrong"})
	assertUnauthorizedError(t, err)
	_, err = svc.Login(ctx, LoginInput{Login: "nobody", Password: "password"})
	assertUnauthorizedError(t, err)

	_, err = svc.Login(ctx, LoginInput{Login: "frank", Password: "password"})
	assert.True(t, errors.Is(err, ErrEmailNotVerified))
}

func TestAuthService_VerifyEmail(t *testing.T) {
	t.Parallel()
	svc, _, _ := newAuthService(t, nil, true)
	ctx := context.Background()

	_, err := svc.VerifyEmail(ctx, "bogus")
	assertValidationError(t, err)

	res, err := svc.Signup(ctx, SignupInput{Username: "gina", Email: "gina@example.com", Password: "secret123"})
	require.NoError(t, err)
	token := *res.User.EmailVerificationToken

	verified, err := svc.VerifyEmail(ctx, token)
	require.NoError(t, err)
	assert.True(t, verified.User.EmailVerified())
	assert.Nil(t, verified.User.EmailVerificationToken)
	assert.NotEmpty(t, verified.Token)

	_, err = svc.VerifyEmail(ctx, token)
	assertValidationError(t, err)

	err = svc.ResendVerification(ctx, "gina@example.com")
	assertValidationError(t, err)
}

func TestAuthService_ResendVerification(t *testing.T) {
	t.Parallel()
	svc, _, mail := newAuthService(t, nil, true)
	ctx := context.Background()

	assertNotFoundError(t, svc.ResendVerification(ctx, "ghost@example.com"))

	res, err := svc.Signup(ctx, SignupInput{Username: "hank", Email: "hank@example.com", Password: "secret123"})
	require.NoError(t, err)
	first := *res.User.EmailVerificationToken

	require.NoError(t, svc.ResendVerification(ctx, "HANK@example.com"))
	assert.Len(t, mail.verifications, 2)

	_, err = svc.VerifyEmail(ctx, first)
	assertValidationError(t, err)

	mail.err = errors.New("provider down")
	assertAppError(t, svc.ResendVerification(ctx, "hank@example.com"), "INTERNAL_ERROR")
}

func TestAuthService_PasswordReset(t *testing.T) {
	t.Parallel()
	svc, r, mail := newAuthService(t, nil, false)
	ctx := context.Background()
	user := testutil.CreateUser(t, r.db, "ivy", true)

	assertNotFoundError(t, svc.ForgotPassword(ctx, "nobody@example.com"))
	require.NoError(t, svc.ForgotPassword(ctx, "ivy@example.com"))
	assert.Equal(t, []string{"ivy@example.com"}, mail.resets)

	stored, err := r.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PasswordResetToken)
	token := *stored.PasswordResetToken

	assertValidationError(t, svc.ResetPassword(ctx, "wrong-token", "newpass123"))
	assertValidationError(t, svc.ResetPassword(ctx, token, "123"))

	t.Run("expired", func(t *testing.T) {
		late := *svc
		late.now = func() time.Time { return time.Now().Add(PasswordResetTTL + time.Minute) }
		err := late.ResetPassword(ctx, token, "newpass123")
		appErr := assertValidationError(t, err)
		assert.Equal(t, "Invalid or expired reset token", appErr.Message)
	})

	require.NoError(t, svc.ResetPassword(ctx, token, "newpass123"))
	_, err = svc.Login(ctx, LoginInput{Login: "ivy", Password: "newpass123"})
	require.NoError(t, err)

	// Tokens are single use.
	assertValidationError(t, svc.ResetPassword(ctx, token, "another123"))
}

func TestAuthService_LogoutRevokesToken(t *testing.T) {
	t.Parallel()
	mr, rdb := newTestRedis(t)
	svc, _, _ := newAuthService(t, rdb, false)
	ctx := context.Background()

	raw, err := svc.IssueToken(7)
	require.NoError(t, err)
	claims, err := svc.Authenticate(ctx, raw)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, claims))
	assert.True(t, mr.Exists(cache.RevokedTokenKey(claims.JTI)))
	ttl := mr.TTL(cache.RevokedTokenKey(claims.JTI))
	assert.True(t, ttl > 50*time.Minute && ttl <= time.Hour, "ttl %s", ttl)

	_, err = svc.Authenticate(ctx, raw)
	assertUnauthorizedError(t, err)

	other, err := svc.IssueToken(7)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, other)
	require.NoError(t, err)
}

func TestAuthService_AuthenticateSurvivesRedisOutage(t *testing.T) {
	t.Parallel()
	mr, rdb := newTestRedis(t)
	svc, _, _ := newAuthService(t, rdb, false)

	raw, err := svc.IssueToken(3)
	require.NoError(t, err)
	mr.Close()

	claims, err := svc.Authenticate(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, uint(3), claims.UserID)
}
