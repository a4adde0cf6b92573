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

type ResourceService struct {
	resourceRepo repository.ResourceRepository
	rdb          *redis.Client
}

// ResourceInput is used for both create and partial update; nil fields are unset.
type ResourceInput struct {
	Name   *string
	Price  *int
	Source *string
	Status *string
	Public *bool
}

func NewResourceService(resourceRepo repository.ResourceRepository, rdb *redis.Client) *ResourceService {
	return &ResourceService{resourceRepo: resourceRepo, rdb: rdb}
}

func (s *ResourceService) List(ctx context.Context, userID uint, opts repository.ListOptions) ([]models.Resource, error) {
	return s.resourceRepo.ListVisible(ctx, userID, opts)
}

func (s *ResourceService) Get(ctx context.Context, userID, id uint) (*models.Resource, error) {
	resource, err := s.resourceRepo.GetWithTags(ctx, id)
	if err != nil {
		return nil, err
	}
	err = requireAccess(ctx, resource.Public, func(ctx context.Context) (bool, error) {
		return s.resourceRepo.IsOwned(ctx, userID, id)
	}, "You don't have access to this resource")
	if err != nil {
		return nil, err
	}
	return resource, nil
}

func (s *ResourceService) Create(ctx context.Context, userID uint, in ResourceInput) (*models.Resource, error) {
	resource := &models.Resource{Status: models.ResourceStatusAvailable}
	applyResource(resource, in)
	if err := validateResource(resource); err != nil {
		return nil, err
	}
	if err := s.resourceRepo.Create(ctx, resource, userID); err != nil {
		return nil, err
	}
	return resource, nil
}

func (s *ResourceService) Update(ctx context.Context, userID, id uint, in ResourceInput) (*models.Resource, error) {
	resource, err := s.resourceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwned(ctx, userID, id); err != nil {
		return nil, err
	}

	applyResource(resource, in)
	if err := validateResource(resource); err != nil {
		return nil, err
	}
	if err := s.resourceRepo.Update(ctx, resource); err != nil {
		return nil, err
	}
	s.invalidateProjects(ctx, id)
	return resource, nil
}

func (s *ResourceService) Delete(ctx context.Context, userID, id uint) error {
	if _, err := s.resourceRepo.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.requireOwned(ctx, userID, id); err != nil {
		return err
	}
	projectIDs, _ := s.resourceRepo.ProjectIDs(ctx, id)
	if err := s.resourceRepo.Delete(ctx, id); err != nil {
		return err
	}
	cache.InvalidateProject(ctx, s.rdb, projectIDs...)
	return nil
}

func (s *ResourceService) requireOwned(ctx context.Context, userID, id uint) error {
	return requireLinked(ctx, func(ctx context.Context) (bool, error) {
		return s.resourceRepo.IsOwned(ctx, userID, id)
	}, "You don't own this resource")
}

func (s *ResourceService) invalidateProjects(ctx context.Context, id uint) {
	if s.rdb == nil {
		return
	}
	ids, err := s.resourceRepo.ProjectIDs(ctx, id)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "project cache invalidation skipped", slog.Uint64("resource_id", uint64(id)), slog.String("error", err.Error()))
		return
	}
	cache.InvalidateProject(ctx, s.rdb, ids...)
}

func applyResource(r *models.Resource, in ResourceInput) {
	setString(&r.Name, in.Name)
	setInt(&r.Price, in.Price)
	setString(&r.Source, in.Source)
	setString(&r.Status, in.Status)
	setBool(&r.Public, in.Public)
}

func validateResource(r *models.Resource) error {
	var v validationErrors
	v.name(r.Name)
	v.nonNegative("Price", r.Price)
	if !models.ValidResourceStatus(r.Status) {
		v.add("Status must be one of available, used, broken")
	}
	return v.err()
}
