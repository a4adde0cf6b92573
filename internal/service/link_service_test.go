package service

import (
	"context"
	"testing"

	"taskhub/internal/cache"
	"taskhub/internal/models"
	"taskhub/internal/repository"
	"taskhub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkService_ProjectTasks(t *testing.T) {
	t.Parallel()
	r := newRepos(t)
	svc := NewLinkService(repository.NewLinkRepository[models.ProjectTask](r.db), nil)
	ctx := context.Background()
	owner := testutil.CreateUser(t, r.db, "owner", true)
	project := testutil.CreateProject(t, r.db, "Porch", true, owner.ID)
	task := testutil.CreateTask(t, r.db, "Stain", true, owner.ID)
	other := testutil.CreateTask(t, r.db, "Seal", true, owner.ID)

	assert.Equal(t, "project_tasks", svc.Table())
	assert.Equal(t, "project_task", svc.Resource())

	t.Run("missing sides", func(t *testing.T) {
		_, err := svc.Create(ctx, LinkInput{LeftID: uintPtr(999)})
		appErr := assertValidationError(t, err)
		assert.Equal(t, []string{"Project must exist", "Task must exist"}, appErr.Fields)
	})

	link, err := svc.Create(ctx, LinkInput{LeftID: uintPtr(project.ID), RightID: uintPtr(task.ID)})
	require.NoError(t, err)
	assert.Equal(t, project.ID, link.LeftID())
	assert.Equal(t, task.ID, link.RightID())

	t.Run("duplicate pair", func(t *testing.T) {
		_, err := svc.Create(ctx, LinkInput{LeftID: uintPtr(project.ID), RightID: uintPtr(task.ID)})
		appErr := assertValidationError(t, err)
		assert.Equal(t, "Task has already been taken", appErr.Message)
	})

	second, err := svc.Create(ctx, LinkInput{LeftID: uintPtr(project.ID), RightID: uintPtr(other.ID)})
	require.NoError(t, err)

	rows, err := svc.List(ctx, []repository.LinkFilter{{Column: "task_id", Value: other.ID}}, 20, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, other.ID, rows[0].RightID())

	all, err := svc.List(ctx, []repository.LinkFilter{{Column: "project_id", Value: project.ID}}, 20, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// Moving the second row onto the first pair collides.
	id := second.(*models.ProjectTask).ID
	_, err = svc.Update(ctx, id, LinkInput{RightID: uintPtr(task.ID)})
	assertValidationError(t, err)

	// Re-saving a row with its own pair is fine.
	_, err = svc.Update(ctx, id, LinkInput{RightID: uintPtr(other.ID)})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, id))
	_, err = svc.Get(ctx, id)
	assertNotFoundError(t, err)
}

func TestLinkService_UserProjectsInvalidateCaches(t *testing.T) {
	t.Parallel()
	mr, rdb := newTestRedis(t)
	r := newRepos(t)
	svc := NewLinkService(repository.NewLinkRepository[models.UserProject](r.db), rdb)
	ctx := context.Background()
	user := testutil.CreateUser(t, r.db, "user", true)
	project := testutil.CreateProject(t, r.db, "Attic", true, 0)

	mr.Set(cache.ProjectDetailKey(project.ID), "{}")
	mr.Set(cache.UserProfileKey(user.ID), "{}")

	_, err := svc.Create(ctx, LinkInput{LeftID: uintPtr(user.ID), RightID: uintPtr(project.ID)})
	require.NoError(t, err)

	assert.False(t, mr.Exists(cache.ProjectDetailKey(project.ID)))
	assert.False(t, mr.Exists(cache.UserProfileKey(user.ID)))
}
