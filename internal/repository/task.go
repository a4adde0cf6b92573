package repository

import (
	"context"

	"taskhub/internal/models"

	"gorm.io/gorm"
)

// TaskRepository defines persistence operations for tasks.
type TaskRepository interface {
	Create(ctx context.Context, task *models.Task, ownerID uint) error
	GetByID(ctx context.Context, id uint) (*models.Task, error)
	GetWithTags(ctx context.Context, id uint) (*models.Task, error)
	ListVisible(ctx context.Context, userID uint, opts ListOptions) ([]models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id uint) error
	IsAssigned(ctx context.Context, userID, taskID uint) (bool, error)
	ProjectIDs(ctx context.Context, taskID uint) ([]uint, error)
}

type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository returns a new TaskRepository implementation.
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) Create(ctx context.Context, task *models.Task, ownerID uint) error {
	err := createOwned(ctx, r.db, task, ownerID,
		func() models.Link { return &models.UserTask{UserID: ownerID, TaskID: task.ID} })
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, id uint) (*models.Task, error) {
	var task models.Task
	if err := readDB(r.db).WithContext(ctx).First(&task, id).Error; err != nil {
		return nil, notFoundOr(err, "Task", id)
	}
	return &task, nil
}

func (r *taskRepository) GetWithTags(ctx context.Context, id uint) (*models.Task, error) {
	task, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	tags, err := tagsFor(ctx, readDB(r.db), "task_tags", "task_id", []uint{id})
	if err != nil {
		return nil, err
	}
	task.Tags = tags[id]
	if task.Tags == nil {
		task.Tags = []models.Tag{}
	}
	return task, nil
}

func (r *taskRepository) ListVisible(ctx context.Context, userID uint, opts ListOptions) ([]models.Task, error) {
	db := readDB(r.db).WithContext(ctx).Model(&models.Task{})
	db = applyListOptions(visibleTo(db, "tasks", "user_tasks", "task_id", userID), "tasks", opts)

	var tasks []models.Task
	if err := db.Find(&tasks).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return tasks, nil
}

func (r *taskRepository) Update(ctx context.Context, task *models.Task) error {
	if err := r.db.WithContext(ctx).Save(task).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *taskRepository) Delete(ctx context.Context, id uint) error {
	return deleteWithLinks(ctx, r.db, &models.Task{}, id, "Task", "task_id",
		[]string{"user_tasks", "project_tasks", "task_resources", "task_tags"})
}

func (r *taskRepository) IsAssigned(ctx context.Context, userID, taskID uint) (bool, error) {
	return isLinked(ctx, readDB(r.db), "user_tasks", "task_id", userID, taskID)
}

// ProjectIDs lists the projects a task belongs to. Task writes use it to drop
// stale project detail caches.
func (r *taskRepository) ProjectIDs(ctx context.Context, taskID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.ProjectTask{}).
		Where("task_id = ?", taskID).
		Pluck("project_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}
