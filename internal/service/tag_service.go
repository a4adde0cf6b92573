package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"taskhub/internal/cache"
	"taskhub/internal/models"
	"taskhub/internal/repository"

	"github.com/redis/go-redis/v9"
)

const maxTagNameLength = 100

// TagService manages the global tag list. Tags are shared, so any signed-in user may edit them.
type TagService struct {
	tagRepo repository.TagRepository
	rdb     *redis.Client
}

type TagInput struct {
	Name        *string
	Description *string
	Public      *bool
}

func NewTagService(tagRepo repository.TagRepository, rdb *redis.Client) *TagService {
	return &TagService{tagRepo: tagRepo, rdb: rdb}
}

func (s *TagService) List(ctx context.Context, opts repository.ListOptions) ([]models.Tag, error) {
	return s.tagRepo.List(ctx, opts)
}

func (s *TagService) Get(ctx context.Context, id uint) (*models.Tag, error) {
	return s.tagRepo.GetByID(ctx, id)
}

func (s *TagService) Create(ctx context.Context, in TagInput) (*models.Tag, error) {
	tag := &models.Tag{Public: true}
	applyTag(tag, in)
	if err := s.validate(ctx, tag); err != nil {
		return nil, err
	}
	if err := s.tagRepo.Create(ctx, tag); err != nil {
		return nil, err
	}
	return tag, nil
}

func (s *TagService) Update(ctx context.Context, id uint, in TagInput) (*models.Tag, error) {
	tag, err := s.tagRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	applyTag(tag, in)
	if err := s.validate(ctx, tag); err != nil {
		return nil, err
	}
	if err := s.tagRepo.Update(ctx, tag); err != nil {
		return nil, err
	}
	if projectIDs, err := s.tagRepo.ProjectIDs(ctx, id); err == nil {
		cache.InvalidateProject(ctx, s.rdb, projectIDs...)
	}
	return tag, nil
}

func (s *TagService) Delete(ctx context.Context, id uint) error {
	if _, err := s.tagRepo.GetByID(ctx, id); err != nil {
		return err
	}
	projectIDs, _ := s.tagRepo.ProjectIDs(ctx, id)
	if err := s.tagRepo.Delete(ctx, id); err != nil {
		return err
	}
	cache.InvalidateProject(ctx, s.rdb, projectIDs...)
	return nil
}

func (s *TagService) validate(ctx context.Context, tag *models.Tag) error {
	var v validationErrors
	switch {
	case strings.TrimSpace(tag.Name) == "":
		v.add("Name can't be blank")
	case utf8.RuneCountInString(tag.Name) > maxTagNameLength:
		v.add("Name is too long (maximum is %d characters)", maxTagNameLength)
	default:
		taken, err := s.tagRepo.NameTaken(ctx, tag.Name, tag.ID)
		if err != nil {
			return err
		}
		if taken {
			v.add("Name has already been taken")
		}
	}
	return v.err()
}

func applyTag(t *models.Tag, in TagInput) {
	setString(&t.Name, in.Name)
	setString(&t.Description, in.Description)
	setBool(&t.Public, in.Public)
}
