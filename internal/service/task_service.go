package service

import (
	"context"
	"log/slog"

	"taskhub/internal/cache"
	"taskhub/internal/middleware"
	"taskhub/internal/models"
	"taskhub/internal/repository"

	"github.com/redis/go-redis/v9"
)

type TaskService struct {
	taskRepo repository.TaskRepository
	rdb      *redis.Client
}

// TaskInput is used for both create and partial update; nil fields are unset.
type TaskInput struct {
	Name       *string
	Time       *int
	Cost       *int
	Spent      *int
	StartingAt *models.Date
	EndingAt   *models.Date
	Status     *string
	Public     *bool
}

func NewTaskService(taskRepo repository.TaskRepository, rdb *redis.Client) *TaskService {
	return &TaskService{taskRepo: taskRepo, rdb: rdb}
}

func (s *TaskService) List(ctx context.Context, userID uint, opts repository.ListOptions) ([]models.Task, error) {
	return s.taskRepo.ListVisible(ctx, userID, opts)
}

// Get returns the task with its tags.
func (s *TaskService) Get(ctx context.Context, userID, id uint) (*models.Task, error) {
	task, err := s.taskRepo.GetWithTags(ctx, id)
	if err != nil {
		return nil, err
	}
	err = requireAccess(ctx, task.Public, func(ctx context.Context) (bool, error) {
		return s.taskRepo.IsAssigned(ctx, userID, id)
	}, "You don't have access to this task")
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) Create(ctx context.Context, userID uint, in TaskInput) (*models.Task, error) {
	task := &models.Task{Status: models.TaskStatusPending}
	applyTask(task, in)
	if err := validateTask(task); err != nil {
		return nil, err
	}
	if err := s.taskRepo.Create(ctx, task, userID); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) Update(ctx context.Context, userID, id uint, in TaskInput) (*models.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireAssigned(ctx, userID, id); err != nil {
		return nil, err
	}

	applyTask(task, in)
	if err := validateTask(task); err != nil {
		return nil, err
	}
	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, err
	}
	s.invalidateProjects(ctx, id)
	return task, nil
}

func (s *TaskService) Delete(ctx context.Context, userID, id uint) error {
	if _, err := s.taskRepo.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.requireAssigned(ctx, userID, id); err != nil {
		return err
	}
	// Resolve owning projects before the link rows disappear.
	projectIDs, _ := s.taskRepo.ProjectIDs(ctx, id)
	if err := s.taskRepo.Delete(ctx, id); err != nil {
		return err
	}
	cache.InvalidateProject(ctx, s.rdb, projectIDs...)
	return nil
}

func (s *TaskService) requireAssigned(ctx context.Context, userID, id uint) error {
	return requireLinked(ctx, func(ctx context.Context) (bool, error) {
		return s.taskRepo.IsAssigned(ctx, userID, id)
	}, "You are not assigned to this task")
}

// invalidateProjects drops cached project details that embed the task.
func (s *TaskService) invalidateProjects(ctx context.Context, id uint) {
	if s.rdb == nil {
		return
	}
	ids, err := s.taskRepo.ProjectIDs(ctx, id)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "project cache invalidation skipped", slog.Uint64("task_id", uint64(id)), slog.String("error", err.Error()))
		return
	}
	cache.InvalidateProject(ctx, s.rdb, ids...)
}

func applyTask(t *models.Task, in TaskInput) {
	setString(&t.Name, in.Name)
	setInt(&t.Time, in.Time)
	setInt(&t.Cost, in.Cost)
	setInt(&t.Spent, in.Spent)
	setDate(&t.StartingAt, in.StartingAt)
	setDate(&t.EndingAt, in.EndingAt)
	setString(&t.Status, in.Status)
	setBool(&t.Public, in.Public)
}

func validateTask(t *models.Task) error {
	var v validationErrors
	v.name(t.Name)
	v.nonNegative("Time", t.Time)
	v.nonNegative("Cost", t.Cost)
	v.nonNegative("Spent", t.Spent)
	v.dateRange(t.StartingAt, t.EndingAt)
	if !models.ValidTaskStatus(t.Status) {
		v.add("Status must be one of pending, in_progress, completed")
	}
	return v.err()
}
