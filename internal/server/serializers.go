package server

import (
	"time"

	"taskhub/internal/models"
	"taskhub/internal/service"
)

// itemRef is the {id, name} block a post uses for its related item.
type itemRef struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type postResponse struct {
	ID                 uint                 `json:"id"`
	Title              string               `json:"title"`
	Content            string               `json:"content"`
	PostType           string               `json:"post_type"`
	Public             bool                 `json:"public"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
	User               models.AuthorSummary `json:"user"`
	Project            *itemRef             `json:"project"`
	Task               *itemRef             `json:"task"`
	Resource           *itemRef             `json:"resource"`
	RelatedItemType    *string              `json:"related_item_type"`
	LikesCount         int                  `json:"likes_count"`
	CommentsCount      int                  `json:"comments_count"`
	LikedByCurrentUser bool                 `json:"liked_by_current_user"`
}

func serializePost(p *models.Post) postResponse {
	out := postResponse{
		ID:                 p.ID,
		Title:              p.Title,
		Content:            p.Content,
		PostType:           p.PostType,
		Public:             p.Public,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
		User:               p.User.Author(),
		LikesCount:         p.LikesCount,
		CommentsCount:      p.CommentsCount,
		LikedByCurrentUser: p.Liked,
	}
	if p.Project != nil {
		out.Project = &itemRef{ID: p.Project.ID, Name: p.Project.Name}
	}
	if p.Task != nil {
		out.Task = &itemRef{ID: p.Task.ID, Name: p.Task.Name}
	}
	if p.Resource != nil {
		out.Resource = &itemRef{ID: p.Resource.ID, Name: p.Resource.Name}
	}
	if t := p.RelatedItemType(); t != "" {
		out.RelatedItemType = &t
	}
	return out
}

func serializePosts(posts []*models.Post) []postResponse {
	out := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, serializePost(p))
	}
	return out
}

type commentResponse struct {
	ID        uint                 `json:"id"`
	Content   string               `json:"content"`
	PostID    uint                 `json:"post_id"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
	User      models.AuthorSummary `json:"user"`
}

func serializeComment(c *models.Comment) commentResponse {
	return commentResponse{
		ID:        c.ID,
		Content:   c.Content,
		PostID:    c.PostID,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		User:      c.User.Author(),
	}
}

func serializeComments(comments []*models.Comment) []commentResponse {
	out := make([]commentResponse, 0, len(comments))
	for _, c := range comments {
		out = append(out, serializeComment(c))
	}
	return out
}

func summaries(users []models.User) []models.UserSummary {
	out := make([]models.UserSummary, 0, len(users))
	for i := range users {
		out = append(out, users[i].Summary())
	}
	return out
}

type friendRequestResponse struct {
	ID        uint               `json:"id"`
	Requester models.UserSummary `json:"requester"`
	CreatedAt time.Time          `json:"created_at"`
}

func serializeFriendRequests(requests []models.Friendship) []friendRequestResponse {
	out := make([]friendRequestResponse, 0, len(requests))
	for i := range requests {
		out = append(out, friendRequestResponse{
			ID:        requests[i].ID,
			Requester: requests[i].Requester.Summary(),
			CreatedAt: requests[i].CreatedAt,
		})
	}
	return out
}

// projectDetail always renders the nested collections, even when empty.
type projectDetail struct {
	*models.Project
	Tasks     []models.Task     `json:"tasks"`
	Resources []models.Resource `json:"resources"`
	Tags      []models.Tag      `json:"tags"`
}

func serializeProjectDetail(p *models.Project) projectDetail {
	out := projectDetail{Project: p, Tasks: p.Tasks, Resources: p.Resources, Tags: p.Tags}
	if out.Tasks == nil {
		out.Tasks = []models.Task{}
	}
	if out.Resources == nil {
		out.Resources = []models.Resource{}
	}
	if out.Tags == nil {
		out.Tags = []models.Tag{}
	}
	return out
}

type taskDetail struct {
	*models.Task
	Tags []models.Tag `json:"tags"`
}

func serializeTaskDetail(t *models.Task) taskDetail {
	out := taskDetail{Task: t, Tags: t.Tags}
	if out.Tags == nil {
		out.Tags = []models.Tag{}
	}
	return out
}

type resourceDetail struct {
	*models.Resource
	Tags []models.Tag `json:"tags"`
}

func serializeResourceDetail(r *models.Resource) resourceDetail {
	out := resourceDetail{Resource: r, Tags: r.Tags}
	if out.Tags == nil {
		out.Tags = []models.Tag{}
	}
	return out
}

// Non-nil slices so empty collections render as [] rather than null.

func projectList(items []models.Project) []models.Project {
	if items == nil {
		return []models.Project{}
	}
	return items
}

func taskList(items []models.Task) []models.Task {
	if items == nil {
		return []models.Task{}
	}
	return items
}

func resourceList(items []models.Resource) []models.Resource {
	if items == nil {
		return []models.Resource{}
	}
	return items
}

func tagList(items []models.Tag) []models.Tag {
	if items == nil {
		return []models.Tag{}
	}
	return items
}

func searchResults(items []service.UserSearchResult) []service.UserSearchResult {
	if items == nil {
		return []service.UserSearchResult{}
	}
	return items
}

func suggestionList(items []service.Suggestion) []service.Suggestion {
	if items == nil {
		return []service.Suggestion{}
	}
	return items
}
