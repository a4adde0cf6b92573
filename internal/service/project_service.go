package service

import (
	"context"
	"math"
	"time"

	"taskhub/internal/cache"
	"taskhub/internal/models"
	"taskhub/internal/repository"

	"github.com/redis/go-redis/v9"
)

// Deadline badge levels derived from elapsed time.
const (
	DeadlineNone    = "none"
	DeadlineSuccess = "success"
	DeadlineWarning = "warning"
	DeadlineError   = "error"
)

type ProjectService struct {
	projectRepo repository.ProjectRepository
	rdb         *redis.Client
	now         func() time.Time
}

// ProjectInput is used for both create and partial update; nil fields are unset.
type ProjectInput struct {
	Name       *string
	Time       *int
	Budget     *int
	Spent      *int
	StartingAt *models.Date
	EndingAt   *models.Date
	Status     *string
	Deadline   *string
	Public     *bool
}

// ProjectProgress summarises task completion, budget use and schedule.
type ProjectProgress struct {
	TaskCount             int64  `json:"task_count"`
	CompletedTasks        int64  `json:"completed_tasks"`
	TaskCompletionPercent int    `json:"task_completion_percent"`
	Budget                int    `json:"budget"`
	Spent                 int    `json:"spent"`
	BudgetUsedPercent     int    `json:"budget_used_percent"`
	TimeElapsedPercent    *int   `json:"time_elapsed_percent"`
	DaysRemaining         *int   `json:"days_remaining"`
	DeadlineStatus        string `json:"deadline_status"`
}

func NewProjectService(projectRepo repository.ProjectRepository, rdb *redis.Client) *ProjectService {
	return &ProjectService{projectRepo: projectRepo, rdb: rdb, now: time.Now}
}

func (s *ProjectService) List(ctx context.Context, userID uint, opts repository.ListOptions) ([]models.Project, error) {
	return s.projectRepo.ListVisible(ctx, userID, opts)
}

// Get returns the project with its tasks, resources and tags.
func (s *ProjectService) Get(ctx context.Context, userID, id uint) (*models.Project, error) {
	project, err := cache.Aside(ctx, s.rdb, "project", cache.ProjectDetailKey(id), cache.ProjectDetailTTL,
		func(ctx context.Context) (*models.Project, error) {
			return s.projectRepo.GetDetail(ctx, id)
		})
	if err != nil {
		return nil, err
	}
	if err := s.canView(ctx, userID, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *ProjectService) Create(ctx context.Context, userID uint, in ProjectInput) (*models.Project, error) {
	project := &models.Project{}
	applyProject(project, in)
	if err := validateProject(project); err != nil {
		return nil, err
	}
	if err := s.projectRepo.Create(ctx, project, userID); err != nil {
		return nil, err
	}
	// projects_count on the creator's profile just changed.
	cache.InvalidateUserProfile(ctx, s.rdb, userID)
	return project, nil
}

func (s *ProjectService) Update(ctx context.Context, userID, id uint, in ProjectInput) (*models.Project, error) {
	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, userID, id); err != nil {
		return nil, err
	}

	applyProject(project, in)
	if err := validateProject(project); err != nil {
		return nil, err
	}
	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, err
	}
	cache.InvalidateProject(ctx, s.rdb, id)
	return project, nil
}

func (s *ProjectService) Delete(ctx context.Context, userID, id uint) error {
	if _, err := s.projectRepo.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.requireMember(ctx, userID, id); err != nil {
		return err
	}
	members, err := s.projectRepo.MemberIDs(ctx, id)
	if err != nil {
		return err
	}
	if err := s.projectRepo.Delete(ctx, id); err != nil {
		return err
	}
	cache.InvalidateProject(ctx, s.rdb, id)
	cache.InvalidateUserProfile(ctx, s.rdb, members...)
	return nil
}

// Progress computes completion, budget and schedule figures for a viewable project.
func (s *ProjectService) Progress(ctx context.Context, userID, id uint) (*ProjectProgress, error) {
	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canView(ctx, userID, project); err != nil {
		return nil, err
	}
	stats, err := s.projectRepo.TaskStats(ctx, id)
	if err != nil {
		return nil, err
	}
	progress := ComputeProgress(project, *stats, s.now())
	return &progress, nil
}

func (s *ProjectService) canView(ctx context.Context, userID uint, project *models.Project) error {
	return requireAccess(ctx, project.Public, func(ctx context.Context) (bool, error) {
		return s.projectRepo.IsMember(ctx, userID, project.ID)
	}, "You don't have access to this project")
}

func (s *ProjectService) requireMember(ctx context.Context, userID, id uint) error {
	return requireLinked(ctx, func(ctx context.Context) (bool, error) {
		return s.projectRepo.IsMember(ctx, userID, id)
	}, "You are not a member of this project")
}

func applyProject(p *models.Project, in ProjectInput) {
	setString(&p.Name, in.Name)
	setInt(&p.Time, in.Time)
	setInt(&p.Budget, in.Budget)
	setInt(&p.Spent, in.Spent)
	setDate(&p.StartingAt, in.StartingAt)
	setDate(&p.EndingAt, in.EndingAt)
	setString(&p.Status, in.Status)
	setString(&p.Deadline, in.Deadline)
	setBool(&p.Public, in.Public)
}

func validateProject(p *models.Project) error {
	var v validationErrors
	v.name(p.Name)
	v.nonNegative("Time", p.Time)
	v.nonNegative("Budget", p.Budget)
	v.nonNegative("Spent", p.Spent)
	v.dateRange(p.StartingAt, p.EndingAt)
	return v.err()
}

// ComputeProgress derives the progress figures at today.
func ComputeProgress(p *models.Project, stats repository.TaskStats, today time.Time) ProjectProgress {
	out := ProjectProgress{
		TaskCount:      stats.Total,
		CompletedTasks: stats.Completed,
		Budget:         p.Budget,
		Spent:          p.Spent,
		DeadlineStatus: DeadlineNone,
	}
	if stats.Total > 0 {
		out.TaskCompletionPercent = percent(float64(stats.Completed), float64(stats.Total))
	}
	if p.Budget > 0 {
		out.BudgetUsedPercent = percent(float64(p.Spent), float64(p.Budget))
	}

	day := models.NewDate(today)
	if p.EndingAt != nil {
		remaining := daysBetween(day, *p.EndingAt)
		out.DaysRemaining = &remaining
	}
	if p.StartingAt == nil || p.EndingAt == nil {
		return out
	}

	var elapsed int
	total := daysBetween(*p.StartingAt, *p.EndingAt)
	switch {
	case total <= 0 && !day.Before(p.EndingAt.Time):
		elapsed = 100
	case total <= 0:
		elapsed = 0
	default:
		elapsed = percent(float64(daysBetween(*p.StartingAt, day)), float64(total))
	}
	elapsed = min(max(elapsed, 0), 100)
	out.TimeElapsedPercent = &elapsed

	switch {
	case elapsed > 75:
		out.DeadlineStatus = DeadlineError
	case elapsed > 50:
		out.DeadlineStatus = DeadlineWarning
	default:
		out.DeadlineStatus = DeadlineSuccess
	}
	return out
}

func percent(part, whole float64) int {
	return int(math.Round(part / whole * 100))
}

func daysBetween(from, to models.Date) int {
	return int(math.Round(to.Sub(from.Time).Hours() / 24))
}
