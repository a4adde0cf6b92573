package service

import (
	"context"
	"testing"

	"taskhub/internal/models"
	"taskhub/internal/notifications"
	"taskhub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSocialService(t *testing.T) (*SocialService, *repos, *eventRecorder) {
	t.Helper()
	r := newRepos(t)
	events := &eventRecorder{}
	return NewSocialService(r.users, r.follows, r.friends, events, nil), r, events
}

func TestSocialService_Follow(t *testing.T) {
	t.Parallel()
	svc, r, events := newSocialService(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, r.db, "alice", true)
	bob := testutil.CreateUser(t, r.db, "bob", true)

	target, err := svc.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", target.Username)

	following, err := r.follows.IsFollowing(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, following)

	got := events.all()
	require.Len(t, got, 1)
	assert.Equal(t, bob.ID, got[0].UserID)
	assert.Equal(t, notifications.EventNewFollower, got[0].Type)
	assert.Equal(t, notifications.Actor{ID: alice.ID, Username: "alice"}, got[0].Payload["actor"])

	t.Run("twice", func(t *testing.T) {
		_, err := svc.Follow(ctx, alice.ID, bob.ID)
		appErr := assertValidationError(t, err)
		assert.Equal(t, "You are already following bob", appErr.Message)
	})

	t.Run("self", func(t *testing.T) {
		_, err := svc.Follow(ctx, alice.ID, alice.ID)
		assertValidationError(t, err)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.Follow(ctx, alice.ID, 9999)
		appErr := assertNotFoundError(t, err)
		assert.Equal(t, "User not found", appErr.Message)
	})
}

func TestSocialService_Unfollow(t *testing.T) {
	t.Parallel()
	svc, r, _ := newSocialService(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, r.db, "alice", true)
	bob := testutil.CreateUser(t, r.db, "bob", true)

	_, err := svc.Unfollow(ctx, alice.ID, bob.ID)
	assertValidationError(t, err)

	_, err = svc.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = svc.Unfollow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	followers, err := svc.Followers(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, followers)
}

func TestSocialService_FriendRequestLifecycle(t *testing.T) {
	t.Parallel()
	svc, r, events := newSocialService(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, r.db, "alice", true)
	bob := testutil.CreateUser(t, r.db, "bob", true)

	_, err := svc.SendFriendRequest(ctx, alice.ID, alice.ID)
	assertValidationError(t, err)

	_, err = svc.SendFriendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	// Pending in either direction blocks a second request.
	_, err = svc.SendFriendRequest(ctx, alice.ID, bob.ID)
	assertValidationError(t, err)
	_, err = svc.SendFriendRequest(ctx, bob.ID, alice.ID)
	assertValidationError(t, err)

	requests, err := svc.FriendRequests(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, alice.ID, requests[0].RequesterID)

	// Only the requestee can accept.
	_, err = svc.AcceptFriendRequest(ctx, alice.ID, bob.ID)
	assertValidationError(t, err)

	requester, err := svc.AcceptFriendRequest(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, requester.ID)

	friends, err := svc.Friends(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, bob.ID, friends[0].ID)

	_, err = svc.SendFriendRequest(ctx, alice.ID, bob.ID)
	appErr := assertValidationError(t, err)
	assert.Equal(t, "You are already friends with bob", appErr.Message)

	var types []string
	for _, e := range events.all() {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{
		notifications.EventFriendRequestReceived,
		notifications.EventFriendRequestAccepted,
	}, types)
	assert.Equal(t, alice.ID, events.all()[1].UserID)
}

func TestSocialService_DeclinedRequestReopens(t *testing.T) {
	t.Parallel()
	svc, r, _ := newSocialService(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, r.db, "alice", true)
	bob := testutil.CreateUser(t, r.db, "bob", true)

	_, err := svc.SendFriendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = svc.DeclineFriendRequest(ctx, bob.ID, alice.ID)
	require.NoError(t, err)

	declined, err := r.friends.GetRequest(ctx, alice.ID, bob.ID, models.FriendshipStatusDeclined)
	require.NoError(t, err)
	require.NotNil(t, declined)

	t.Run("by the original requester", func(t *testing.T) {
		_, err := svc.SendFriendRequest(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		pending, err := r.friends.GetRequest(ctx, alice.ID, bob.ID, models.FriendshipStatusPending)
		require.NoError(t, err)
		require.NotNil(t, pending)
		assert.Equal(t, declined.ID, pending.ID)

		_, err = svc.DeclineFriendRequest(ctx, bob.ID, alice.ID)
		require.NoError(t, err)
	})

	t.Run("by the other side", func(t *testing.T) {
		_, err := svc.SendFriendRequest(ctx, bob.ID, alice.ID)
		require.NoError(t, err)
		pending, err := r.friends.GetRequest(ctx, bob.ID, alice.ID, models.FriendshipStatusPending)
		require.NoError(t, err)
		require.NotNil(t, pending)

		old, err := r.friends.GetRequest(ctx, alice.ID, bob.ID, models.FriendshipStatusDeclined)
		require.NoError(t, err)
		assert.Nil(t, old)
	})
}

func TestSocialService_DeclineWithoutRequest(t *testing.T) {
	t.Parallel()
	svc, r, _ := newSocialService(t)
	alice := testutil.CreateUser(t, r.db, "alice", true)
	bob := testutil.CreateUser(t, r.db, "bob", true)

	_, err := svc.DeclineFriendRequest(context.Background(), bob.ID, alice.ID)
	appErr := assertValidationError(t, err)
	assert.Equal(t, "No pending friend request from alice", appErr.Message)
}

func TestSocialService_RemoveFriend(t *testing.T) {
	t.Parallel()
	svc, r, _ := newSocialService(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, r.db, "alice", true)
	bob := testutil.CreateUser(t, r.db, "bob", true)

	_, err := svc.RemoveFriend(ctx, alice.ID, bob.ID)
	assertValidationError(t, err)

	// The edge is removed whichever side created it.
	testutil.Befriend(t, r.db, bob.ID, alice.ID)
	_, err = svc.RemoveFriend(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	ok, err := r.friends.AreFriends(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSocialService_SearchUsersRelationships(t *testing.T) {
	t.Parallel()
	svc, r, _ := newSocialService(t)
	ctx := context.Background()

	me := testutil.CreateUser(t, r.db, "member_me", true)
	friend := testutil.CreateUser(t, r.db, "member_friend", true)
	sent := testutil.CreateUser(t, r.db, "member_sent", false)
	received := testutil.CreateUser(t, r.db, "member_received", true)
	followed := testutil.CreateUser(t, r.db, "member_followed", true)
	testutil.CreateUser(t, r.db, "member_stranger", true)

	testutil.Befriend(t, r.db, me.ID, friend.ID)
	require.NoError(t, r.follows.Create(ctx, me.ID, friend.ID))
	_, err := svc.SendFriendRequest(ctx, me.ID, sent.ID)
	require.NoError(t, err)
	_, err = svc.SendFriendRequest(ctx, received.ID, me.ID)
	require.NoError(t, err)
	require.NoError(t, r.follows.Create(ctx, me.ID, followed.ID))

	results, err := svc.SearchUsers(ctx, me.ID, "MEMBER")
	require.NoError(t, err)
	require.Len(t, results, 5, "caller is excluded")

	byName := map[string]UserSearchResult{}
	for _, res := range results {
		byName[res.Username] = res
	}
	assert.Equal(t, RelationshipFriends, byName["member_friend"].RelationshipStatus)
	assert.True(t, byName["member_friend"].IsFriend)
	assert.True(t, byName["member_friend"].IsFollowing)
	assert.Equal(t, RelationshipFriendRequestSent, byName["member_sent"].RelationshipStatus)
	assert.Nil(t, byName["member_sent"].Email, "private users hide their email")
	assert.Equal(t, RelationshipFriendRequestReceived, byName["member_received"].RelationshipStatus)
	assert.Equal(t, RelationshipFollowing, byName["member_followed"].RelationshipStatus)
	assert.Equal(t, RelationshipNone, byName["member_stranger"].RelationshipStatus)
	assert.False(t, byName["member_stranger"].IsFollowing)

	empty, err := svc.SearchUsers(ctx, me.ID, "  ")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	status, err := svc.RelationshipStatus(ctx, me.ID, me.ID)
	require.NoError(t, err)
	assert.Equal(t, RelationshipSelf, status)
}

func TestSocialService_Suggestions(t *testing.T) {
	t.Parallel()
	svc, r, _ := newSocialService(t)
	ctx := context.Background()

	me := testutil.CreateUser(t, r.db, "me", true)
	f1 := testutil.CreateUser(t, r.db, "f1", true)
	f2 := testutil.CreateUser(t, r.db, "f2", true)
	popular := testutil.CreateUser(t, r.db, "popular", true)
	known := testutil.CreateUser(t, r.db, "known", true)

	testutil.Befriend(t, r.db, me.ID, f1.ID)
	testutil.Befriend(t, r.db, f2.ID, me.ID)
	testutil.Befriend(t, r.db, popular.ID, f1.ID)
	require.NoError(t, r.follows.Create(ctx, f1.ID, popular.ID))
	require.NoError(t, r.follows.Create(ctx, f2.ID, popular.ID))
	require.NoError(t, r.follows.Create(ctx, f1.ID, known.ID))
	require.NoError(t, r.follows.Create(ctx, me.ID, known.ID))
	require.NoError(t, r.follows.Create(ctx, f1.ID, me.ID))

	suggestions, err := svc.Suggestions(ctx, me.ID)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, popular.ID, suggestions[0].ID)
	assert.Equal(t, 1, suggestions[0].MutualFriendsCount)

	lonely := testutil.CreateUser(t, r.db, "lonely", true)
	none, err := svc.Suggestions(ctx, lonely.ID)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestSocialService_ListsRejectUnknownUser(t *testing.T) {
	t.Parallel()
	svc, _, _ := newSocialService(t)
	ctx := context.Background()

	_, err := svc.Followers(ctx, 404)
	assertNotFoundError(t, err)
	_, err = svc.Following(ctx, 404)
	assertNotFoundError(t, err)
	_, err = svc.Friends(ctx, 404)
	assertNotFoundError(t, err)
}
