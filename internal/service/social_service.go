package service

import (
	"context"
	"fmt"
	"strings"

	"taskhub/internal/cache"
	"taskhub/internal/models"
	"taskhub/internal/notifications"
	"taskhub/internal/observability"
	"taskhub/internal/repository"

	"github.com/redis/go-redis/v9"
)

// Relationship statuses reported by user search, in priority order.
const (
	RelationshipSelf                  = "self"
	RelationshipFriends               = "friends"
	RelationshipFriendRequestSent     = "friend_request_sent"
	RelationshipFriendRequestReceived = "friend_request_received"
	RelationshipFollowing             = "following"
	RelationshipNone                  = "none"
)

const (
	searchLimit      = 20
	suggestionsLimit = 10
)

// EventPublisher pushes realtime events to a user's notification channel.
type EventPublisher interface {
	PublishEvent(ctx context.Context, userID uint, eventType string, payload interface{}) error
}

// SocialService owns the follow and friendship graph.
type SocialService struct {
	userRepo   repository.UserRepository
	followRepo repository.FollowRepository
	friendRepo repository.FriendRepository
	events     EventPublisher
	rdb        *redis.Client
}

// UserSearchResult is a user summary annotated with the caller's relationship to it.
type UserSearchResult struct {
	models.UserSummary
	RelationshipStatus string `json:"relationship_status"`
	IsFollowing        bool   `json:"is_following"`
	IsFriend           bool   `json:"is_friend"`
}

// Suggestion is a user followed by the caller's friends.
type Suggestion struct {
	models.UserSummary
	MutualFriendsCount int `json:"mutual_friends_count"`
}

func NewSocialService(
	userRepo repository.UserRepository,
	followRepo repository.FollowRepository,
	friendRepo repository.FriendRepository,
	events EventPublisher,
	rdb *redis.Client,
) *SocialService {
	return &SocialService{
		userRepo:   userRepo,
		followRepo: followRepo,
		friendRepo: friendRepo,
		events:     events,
		rdb:        rdb,
	}
}

// TargetUser loads a user for a social action; a miss is "User not found".
func (s *SocialService) TargetUser(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if models.ErrorCode(err) == models.CodeNotFound {
			return nil, models.NewNotFoundMessage("User not found")
		}
		return nil, err
	}
	return user, nil
}

func (s *SocialService) Followers(ctx context.Context, userID uint) ([]models.User, error) {
	if _, err := s.TargetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.followRepo.Followers(ctx, userID)
}

func (s *SocialService) Following(ctx context.Context, userID uint) ([]models.User, error) {
	if _, err := s.TargetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.followRepo.Following(ctx, userID)
}

func (s *SocialService) Friends(ctx context.Context, userID uint) ([]models.User, error) {
	if _, err := s.TargetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.friendRepo.GetFriends(ctx, userID)
}

// FriendRequests lists pending requests received by userID, newest first.
func (s *SocialService) FriendRequests(ctx context.Context, userID uint) ([]models.Friendship, error) {
	return s.friendRepo.GetPendingRequests(ctx, userID)
}

func (s *SocialService) Follow(ctx context.Context, userID, targetID uint) (*models.User, error) {
	target, err := s.TargetUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if userID == targetID {
		return nil, models.NewValidationError("You cannot follow yourself")
	}
	following, err := s.followRepo.IsFollowing(ctx, userID, targetID)
	if err != nil {
		return nil, err
	}
	if following {
		return nil, models.NewValidationError(fmt.Sprintf("You are already following %s", target.Username))
	}

	if err := s.followRepo.Create(ctx, userID, targetID); err != nil {
		return nil, err
	}
	observability.SocialEvents.WithLabelValues("follow").Inc()
	cache.InvalidateUserProfile(ctx, s.rdb, userID, targetID)
	s.publish(ctx, targetID, notifications.EventNewFollower, userID, nil)
	return target, nil
}

func (s *SocialService) Unfollow(ctx context.Context, userID, targetID uint) (*models.User, error) {
	target, err := s.TargetUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	removed, err := s.followRepo.Delete(ctx, userID, targetID)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, models.NewValidationError(fmt.Sprintf("You are not following %s", target.Username))
	}
	observability.SocialEvents.WithLabelValues("unfollow").Inc()
	cache.InvalidateUserProfile(ctx, s.rdb, userID, targetID)
	return target, nil
}

// SendFriendRequest opens a pending request. A declined edge between the pair is reopened.
func (s *SocialService) SendFriendRequest(ctx context.Context, userID, targetID uint) (*models.User, error) {
	target, err := s.TargetUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if userID == targetID {
		return nil, models.NewValidationError("You cannot send a friend request to yourself")
	}

	existing, err := s.friendRepo.GetFriendshipBetweenUsers(ctx, userID, targetID)
	if err != nil {
		return nil, err
	}
	switch {
	case existing == nil:
		err = s.friendRepo.Create(ctx, &models.Friendship{
			RequesterID: userID,
			RequesteeID: targetID,
			Status:      models.FriendshipStatusPending,
		})
	case existing.Status == models.FriendshipStatusAccepted:
		return nil, models.NewValidationError(fmt.Sprintf("You are already friends with %s", target.Username))
	case existing.Status == models.FriendshipStatusPending:
		return nil, models.NewValidationError("A friend request is already pending between you and " + target.Username)
	case existing.RequesterID == userID:
		err = s.friendRepo.UpdateStatus(ctx, existing.ID, models.FriendshipStatusPending)
	default:
		// The target's old request was declined; replace it with one in this direction.
		if _, err = s.friendRepo.RemoveFriendship(ctx, userID, targetID); err == nil {
			err = s.friendRepo.Create(ctx, &models.Friendship{
				RequesterID: userID,
				RequesteeID: targetID,
				Status:      models.FriendshipStatusPending,
			})
		}
	}
	if err != nil {
		return nil, err
	}

	observability.SocialEvents.WithLabelValues("friend_request").Inc()
	s.publish(ctx, targetID, notifications.EventFriendRequestReceived, userID, nil)
	return target, nil
}

// AcceptFriendRequest accepts the pending request requesterID sent to userID.
func (s *SocialService) AcceptFriendRequest(ctx context.Context, userID, requesterID uint) (*models.User, error) {
	requester, request, err := s.pendingFrom(ctx, userID, requesterID)
	if err != nil {
		return nil, err
	}
	if err := s.friendRepo.UpdateStatus(ctx, request.ID, models.FriendshipStatusAccepted); err != nil {
		return nil, err
	}
	observability.SocialEvents.WithLabelValues("friend_accept").Inc()
	cache.InvalidateUserProfile(ctx, s.rdb, userID, requesterID)
	s.publish(ctx, requesterID, notifications.EventFriendRequestAccepted, userID, nil)
	return requester, nil
}

func (s *SocialService) DeclineFriendRequest(ctx context.Context, userID, requesterID uint) (*models.User, error) {
	requester, request, err := s.pendingFrom(ctx, userID, requesterID)
	if err != nil {
		return nil, err
	}
	if err := s.friendRepo.UpdateStatus(ctx, request.ID, models.FriendshipStatusDeclined); err != nil {
		return nil, err
	}
	observability.SocialEvents.WithLabelValues("friend_decline").Inc()
	return requester, nil
}

func (s *SocialService) RemoveFriend(ctx context.Context, userID, targetID uint) (*models.User, error) {
	target, err := s.TargetUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	friends, err := s.friendRepo.AreFriends(ctx, userID, targetID)
	if err != nil {
		return nil, err
	}
	if !friends {
		return nil, models.NewValidationError(fmt.Sprintf("You are not friends with %s", target.Username))
	}
	if _, err := s.friendRepo.RemoveFriendship(ctx, userID, targetID); err != nil {
		return nil, err
	}
	observability.SocialEvents.WithLabelValues("unfriend").Inc()
	cache.InvalidateUserProfile(ctx, s.rdb, userID, targetID)
	return target, nil
}

// SearchUsers matches username or email, excluding the caller.
func (s *SocialService) SearchUsers(ctx context.Context, userID uint, query string) ([]UserSearchResult, error) {
	results := []UserSearchResult{}
	if strings.TrimSpace(query) == "" {
		return results, nil
	}

	users, err := s.userRepo.Search(ctx, query, userID, searchLimit)
	if err != nil {
		return nil, err
	}
	graph, err := s.loadGraph(ctx, userID)
	if err != nil {
		return nil, err
	}

	for i := range users {
		u := &users[i]
		results = append(results, UserSearchResult{
			UserSummary:        u.Summary(),
			RelationshipStatus: graph.status(userID, u.ID),
			IsFollowing:        graph.following[u.ID],
			IsFriend:           graph.friends[u.ID],
		})
	}
	return results, nil
}

// RelationshipStatus describes how viewerID relates to targetID.
func (s *SocialService) RelationshipStatus(ctx context.Context, viewerID, targetID uint) (string, error) {
	if viewerID == targetID {
		return RelationshipSelf, nil
	}
	graph, err := s.loadGraph(ctx, viewerID)
	if err != nil {
		return "", err
	}
	return graph.status(viewerID, targetID), nil
}

// Suggestions returns users followed by the caller's friends that the caller
// does not already follow, with the number of friends in common.
func (s *SocialService) Suggestions(ctx context.Context, userID uint) ([]Suggestion, error) {
	out := []Suggestion{}

	friendIDs, err := s.friendRepo.GetFriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(friendIDs) == 0 {
		return out, nil
	}
	followingIDs, err := s.followRepo.FollowingIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	users, err := s.followRepo.FollowedBy(ctx, friendIDs, append(followingIDs, userID), suggestionsLimit)
	if err != nil {
		return nil, err
	}

	mine := idSet(friendIDs)
	for i := range users {
		u := &users[i]
		theirs, err := s.friendRepo.GetFriendIDs(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		mutual := 0
		for _, id := range theirs {
			if mine[id] {
				mutual++
			}
		}
		out = append(out, Suggestion{UserSummary: u.Summary(), MutualFriendsCount: mutual})
	}
	return out, nil
}

func (s *SocialService) pendingFrom(ctx context.Context, userID, requesterID uint) (*models.User, *models.Friendship, error) {
	requester, err := s.TargetUser(ctx, requesterID)
	if err != nil {
		return nil, nil, err
	}
	request, err := s.friendRepo.GetRequest(ctx, requesterID, userID, models.FriendshipStatusPending)
	if err != nil {
		return nil, nil, err
	}
	if request == nil {
		return nil, nil, models.NewValidationError(fmt.Sprintf("No pending friend request from %s", requester.Username))
	}
	return requester, request, nil
}

// publish sends a best-effort event; failures are already logged by the publisher.
func (s *SocialService) publish(ctx context.Context, targetID uint, eventType string, actorID uint, extra map[string]interface{}) {
	publishEvent(ctx, s.events, s.userRepo, targetID, eventType, actorID, extra)
}

// socialGraph holds the caller's edges as lookup sets.
type socialGraph struct {
	friends   map[uint]bool
	following map[uint]bool
	sent      map[uint]bool
	received  map[uint]bool
}

func (s *SocialService) loadGraph(ctx context.Context, userID uint) (*socialGraph, error) {
	friendIDs, err := s.friendRepo.GetFriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	followingIDs, err := s.followRepo.FollowingIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	sentIDs, err := s.friendRepo.PendingRequesteeIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	receivedIDs, err := s.friendRepo.PendingRequesterIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &socialGraph{
		friends:   idSet(friendIDs),
		following: idSet(followingIDs),
		sent:      idSet(sentIDs),
		received:  idSet(receivedIDs),
	}, nil
}

func (g *socialGraph) status(viewerID, targetID uint) string {
	switch {
	case viewerID == targetID:
		return RelationshipSelf
	case g.friends[targetID]:
		return RelationshipFriends
	case g.sent[targetID]:
		return RelationshipFriendRequestSent
	case g.received[targetID]:
		return RelationshipFriendRequestReceived
	case g.following[targetID]:
		return RelationshipFollowing
	default:
		return RelationshipNone
	}
}

func idSet(ids []uint) map[uint]bool {
	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// publishEvent resolves the actor and pushes eventType to targetID. Self-actions are skipped.
func publishEvent(ctx context.Context, events EventPublisher, users repository.UserRepository, targetID uint, eventType string, actorID uint, extra map[string]interface{}) {
	if events == nil || targetID == actorID {
		return
	}
	payload := map[string]interface{}{}
	for k, v := range extra {
		payload[k] = v
	}
	actor := notifications.Actor{ID: actorID}
	if u, err := users.GetByID(ctx, actorID); err == nil {
		actor.Username = u.Username
	}
	payload["actor"] = actor
	_ = events.PublishEvent(ctx, targetID, eventType, payload)
}
