package service

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"taskhub/internal/cache"
	"taskhub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type googleProviderStub struct {
	profile *GoogleProfile
	err     error
}

func (g *googleProviderStub) AuthCodeURL(state string) string {
	return "https://accounts.google.com/o/oauth2/auth?state=" + url.QueryEscape(state)
}

func (g *googleProviderStub) Exchange(context.Context, string) (*GoogleProfile, error) {
	return g.profile, g.err
}

func newOAuthService(t *testing.T, provider GoogleProvider) (*OAuthService, *repos) {
	t.Helper()
	_, rdb := newTestRedis(t)
	r := newRepos(t)
	auth := NewAuthService(r.users, NewTokens(testSecret, time.Hour), &mailerStub{}, rdb, true)
	auth.hashCost = bcrypt.MinCost
	return NewOAuthService(r.users, provider, auth, rdb), r
}

// beginState runs BeginGoogle and extracts the stored state from the consent URL.
func beginState(t *testing.T, svc *OAuthService) string {
	t.Helper()
	consent, err := svc.BeginGoogle(context.Background())
	require.NoError(t, err)
	u, err := url.Parse(consent)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestOAuthService_StateIsSingleUse(t *testing.T) {
	t.Parallel()
	provider := &googleProviderStub{profile: &GoogleProfile{Subject: "g-1", Email: "new.person@gmail.com", EmailVerified: true}}
	svc, _ := newOAuthService(t, provider)
	ctx := context.Background()

	state := beginState(t, svc)
	exists, err := svc.rdb.Exists(ctx, cache.OAuthStateKey(state)).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, exists)

	res, err := svc.CompleteGoogle(ctx, "code", state)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	_, err = svc.CompleteGoogle(ctx, "code", state)
	assertUnauthorizedError(t, err)

	_, err = svc.CompleteGoogle(ctx, "code", "never-issued")
	assertUnauthorizedError(t, err)

	_, err = svc.CompleteGoogle(ctx, "", state)
	assertValidationError(t, err)
}

func TestOAuthService_CreatesVerifiedUser(t *testing.T) {
	t.Parallel()
	provider := &googleProviderStub{profile: &GoogleProfile{Subject: "g-2", Email: "Pat.Smith+diy@gmail.com"}}
	svc, r := newOAuthService(t, provider)
	testutil.CreateUser(t, r.db, "pat.smithdiy", true)

	res, err := svc.CompleteGoogle(context.Background(), "code", beginState(t, svc))
	require.NoError(t, err)
	assert.Equal(t, "pat.smithdiy1", res.User.Username)
	assert.Equal(t, "pat.smith+diy@gmail.com", res.User.Email)
	assert.True(t, res.User.EmailVerified())
	require.NotNil(t, res.User.GoogleSubject)

	// The same Google account signs in to the same user next time.
	again, err := svc.CompleteGoogle(context.Background(), "code", beginState(t, svc))
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, again.User.ID)
}

func TestOAuthService_LinksExistingEmail(t *testing.T) {
	t.Parallel()
	provider := &googleProviderStub{profile: &GoogleProfile{Subject: "g-3", Email: "kim@example.com"}}
	svc, r := newOAuthService(t, provider)
	existing := testutil.CreateUser(t, r.db, "kim", true)

	res, err := svc.CompleteGoogle(context.Background(), "code", beginState(t, svc))
	require.NoError(t, err)
	assert.Equal(t, existing.ID, res.User.ID)
	assert.True(t, res.User.EmailVerified())

	linked, err := r.users.GetByGoogleSubject(context.Background(), "g-3")
	require.NoError(t, err)
	require.NotNil(t, linked)
	assert.Equal(t, existing.ID, linked.ID)
}

func TestOAuthService_ExchangeFailure(t *testing.T) {
	t.Parallel()
	svc, _ := newOAuthService(t, &googleProviderStub{err: errors.New("bad code")})

	_, err := svc.CompleteGoogle(context.Background(), "code", beginState(t, svc))
	assertUnauthorizedError(t, err)
}

func TestDeriveUsername(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"jo@example.com":                     "userjo",
		"mary-ann@example.com":               "mary-ann",
		"admin@example.com":                  "user_admin",
		"a.very.long.local.part.indeed@x.io": "a.very.long.local.part.ind",
	}
	for email, want := range tests {
		assert.Equal(t, want, deriveUsername(email), email)
	}
}
