package repository

import (
	"context"

	"taskhub/internal/models"

	"gorm.io/gorm"
)

// ResourceRepository defines persistence operations for resources.
type ResourceRepository interface {
	Create(ctx context.Context, resource *models.Resource, ownerID uint) error
	GetByID(ctx context.Context, id uint) (*models.Resource, error)
	GetWithTags(ctx context.Context, id uint) (*models.Resource, error)
	ListVisible(ctx context.Context, userID uint, opts ListOptions) ([]models.Resource, error)
	Update(ctx context.Context, resource *models.Resource) error
	Delete(ctx context.Context, id uint) error
	IsOwned(ctx context.Context, userID, resourceID uint) (bool, error)
	ProjectIDs(ctx context.Context, resourceID uint) ([]uint, error)
}

type resourceRepository struct {
	db *gorm.DB
}

// NewResourceRepository returns a new ResourceRepository implementation.
func NewResourceRepository(db *gorm.DB) ResourceRepository {
	return &resourceRepository{db: db}
}

func (r *resourceRepository) Create(ctx context.Context, resource *models.Resource, ownerID uint) error {
	err := createOwned(ctx, r.db, resource, ownerID,
		func() models.Link { return &models.UserResource{UserID: ownerID, ResourceID: resource.ID} })
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *resourceRepository) GetByID(ctx context.Context, id uint) (*models.Resource, error) {
	var resource models.Resource
	if err := readDB(r.db).WithContext(ctx).First(&resource, id).Error; err != nil {
		return nil, notFoundOr(err, "Resource", id)
	}
	return &resource, nil
}

func (r *resourceRepository) GetWithTags(ctx context.Context, id uint) (*models.Resource, error) {
	resource, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	tags, err := tagsFor(ctx, readDB(r.db), "resource_tags", "resource_id", []uint{id})
	if err != nil {
		return nil, err
	}
	resource.Tags = tags[id]
	if resource.Tags == nil {
		resource.Tags = []models.Tag{}
	}
	return resource, nil
}

func (r *resourceRepository) ListVisible(ctx context.Context, userID uint, opts ListOptions) ([]models.Resource, error) {
	db := readDB(r.db).WithContext(ctx).Model(&models.Resource{})
	db = applyListOptions(visibleTo(db, "resources", "user_resources", "resource_id", userID), "resources", opts)

	var resources []models.Resource
	if err := db.Find(&resources).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return resources, nil
}

func (r *resourceRepository) Update(ctx context.Context, resource *models.Resource) error {
	if err := r.db.WithContext(ctx).Save(resource).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *resourceRepository) Delete(ctx context.Context, id uint) error {
	return deleteWithLinks(ctx, r.db, &models.Resource{}, id, "Resource", "resource_id",
		[]string{"user_resources", "project_resources", "task_resources", "resource_tags"})
}

func (r *resourceRepository) IsOwned(ctx context.Context, userID, resourceID uint) (bool, error) {
	return isLinked(ctx, readDB(r.db), "user_resources", "resource_id", userID, resourceID)
}

func (r *resourceRepository) ProjectIDs(ctx context.Context, resourceID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.ProjectResource{}).
		Where("resource_id = ?", resourceID).
		Pluck("project_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}
