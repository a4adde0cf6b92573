package repository

import (
	"context"

	"taskhub/internal/models"

	"gorm.io/gorm"
)

// TaskStats counts a project's tasks for the progress report.
type TaskStats struct {
	Total     int64
	Completed int64
}

// ProjectRepository defines persistence operations for projects.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project, ownerID uint) error
	GetByID(ctx context.Context, id uint) (*models.Project, error)
	GetDetail(ctx context.Context, id uint) (*models.Project, error)
	ListVisible(ctx context.Context, userID uint, opts ListOptions) ([]models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id uint) error
	IsMember(ctx context.Context, userID, projectID uint) (bool, error)
	MemberIDs(ctx context.Context, projectID uint) ([]uint, error)
	TaskStats(ctx context.Context, projectID uint) (*TaskStats, error)
}

type projectRepository struct {
	db *gorm.DB
}

// NewProjectRepository returns a new ProjectRepository implementation.
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) Create(ctx context.Context, project *models.Project, ownerID uint) error {
	err := createOwned(ctx, r.db, project, ownerID,
		func() models.Link { return &models.UserProject{UserID: ownerID, ProjectID: project.ID} })
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *projectRepository) GetByID(ctx context.Context, id uint) (*models.Project, error) {
	var project models.Project
	if err := readDB(r.db).WithContext(ctx).First(&project, id).Error; err != nil {
		return nil, notFoundOr(err, "Project", id)
	}
	return &project, nil
}

// GetDetail loads the project with its tasks, resources and tags.
func (r *projectRepository) GetDetail(ctx context.Context, id uint) (*models.Project, error) {
	project, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	db := readDB(r.db).WithContext(ctx)

	project.Tasks = []models.Task{}
	if err := db.Select("tasks.*").Joins("JOIN project_tasks pt ON pt.task_id = tasks.id").
		Where("pt.project_id = ?", id).
		Order("tasks.id ASC").
		Find(&project.Tasks).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	project.Resources = []models.Resource{}
	if err := db.Select("resources.*").Joins("JOIN project_resources pr ON pr.resource_id = resources.id").
		Where("pr.project_id = ?", id).
		Order("resources.id ASC").
		Find(&project.Resources).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	tags, err := tagsFor(ctx, readDB(r.db), "project_tags", "project_id", []uint{id})
	if err != nil {
		return nil, err
	}
	project.Tags = tags[id]
	if project.Tags == nil {
		project.Tags = []models.Tag{}
	}
	return project, nil
}

func (r *projectRepository) ListVisible(ctx context.Context, userID uint, opts ListOptions) ([]models.Project, error) {
	db := readDB(r.db).WithContext(ctx).Model(&models.Project{})
	db = applyListOptions(visibleTo(db, "projects", "user_projects", "project_id", userID), "projects", opts)

	var projects []models.Project
	if err := db.Find(&projects).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return projects, nil
}

func (r *projectRepository) Update(ctx context.Context, project *models.Project) error {
	if err := r.db.WithContext(ctx).Save(project).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *projectRepository) Delete(ctx context.Context, id uint) error {
	return deleteWithLinks(ctx, r.db, &models.Project{}, id, "Project", "project_id",
		[]string{"user_projects", "project_tasks", "project_resources", "project_tags"})
}

func (r *projectRepository) IsMember(ctx context.Context, userID, projectID uint) (bool, error) {
	return isLinked(ctx, readDB(r.db), "user_projects", "project_id", userID, projectID)
}

// MemberIDs lists the users linked to a project through user_projects.
func (r *projectRepository) MemberIDs(ctx context.Context, projectID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.UserProject{}).
		Where("project_id = ?", projectID).
		Pluck("user_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *projectRepository) TaskStats(ctx context.Context, projectID uint) (*TaskStats, error) {
	var stats TaskStats
	if err := readDB(r.db).WithContext(ctx).Table("tasks").
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN tasks.status = ? THEN 1 ELSE 0 END), 0) AS completed", models.TaskStatusCompleted).
		Joins("JOIN project_tasks pt ON pt.task_id = tasks.id").
		Where("pt.project_id = ?", projectID).
		Scan(&stats).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return &stats, nil
}
