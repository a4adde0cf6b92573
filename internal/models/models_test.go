package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate_JSON(t *testing.T) {
	var p Project
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Deck","starting_at":"2024-03-01","ending_at":null}`), &p))
	require.NotNil(t, p.StartingAt)
	assert.Equal(t, "2024-03-01", p.StartingAt.String())

	out, err := json.Marshal(p.StartingAt)
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-01"`, string(out))

	var d Date
	assert.Error(t, json.Unmarshal([]byte(`"03/01/2024"`), &d))
}

func TestDate_Scan(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan("2024-05-06 00:00:00+00:00"))
	assert.Equal(t, "2024-05-06", d.String())

	require.NoError(t, d.Scan(time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)))
	assert.Equal(t, "2024-01-02", d.String())

	assert.Error(t, d.Scan(42))
}

func TestUser_DisplayNameAndSummary(t *testing.T) {
	u := &User{ID: 1, Email: "maker@example.com", Public: false}
	assert.Equal(t, "maker", u.DisplayName())
	assert.Nil(t, u.Summary().Email)

	u.Username = "woodworker"
	u.Public = true
	s := u.Summary()
	assert.Equal(t, "woodworker", s.DisplayName)
	require.NotNil(t, s.Email)
	assert.Equal(t, "maker@example.com", *s.Email)
}

func TestUser_PasswordResetValid(t *testing.T) {
	now := time.Now()
	token := "abc"
	sent := now.Add(-time.Hour)
	u := &User{PasswordResetToken: &token, PasswordResetSentAt: &sent}
	assert.True(t, u.PasswordResetValid(now, 2*time.Hour))

	stale := now.Add(-3 * time.Hour)
	u.PasswordResetSentAt = &stale
	assert.False(t, u.PasswordResetValid(now, 2*time.Hour))
}

func TestPost_RelatedItemType(t *testing.T) {
	id := uint(3)
	assert.Equal(t, "", (&Post{}).RelatedItemType())
	assert.Equal(t, "task", (&Post{TaskID: &id}).RelatedItemType())
	assert.Equal(t, "project", (&Post{ProjectID: &id, ResourceID: &id}).RelatedItemType())
	assert.True(t, RequiresRelatedItem(PostTypeShowcase))
	assert.False(t, RequiresRelatedItem(PostTypeTip))
}

func TestLinkSides(t *testing.T) {
	left, right := LinkSides((&ProjectTag{}).TableName())
	assert.Equal(t, "project_id", left.Column)
	assert.Equal(t, "tags", right.Table)
	assert.Panics(t, func() { LinkSides("nope") })
}

func TestNewValidationErrors(t *testing.T) {
	assert.Nil(t, NewValidationErrors())

	err := NewValidationErrors("Name can't be blank", "Status is not included in the list")
	assert.Equal(t, CodeValidation, ErrorCode(err))
	assert.Len(t, err.Fields, 2)

	wrapped := NewInternalError(errors.New("boom"))
	assert.Equal(t, CodeInternal, ErrorCode(wrapped))
	assert.Equal(t, "", ErrorCode(errors.New("plain")))
}
