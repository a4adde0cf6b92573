package service

import (
	"context"
	"strings"

	"taskhub/internal/cache"
	"taskhub/internal/models"
	"taskhub/internal/repository"

	"github.com/redis/go-redis/v9"
)

// LinkInput names the two rows a join record connects. Nil leaves a side unchanged on update.
type LinkInput struct {
	LeftID  *uint
	RightID *uint
}

// LinkService manages one join table. The HTTP layer drives all nine through this interface.
type LinkService interface {
	Table() string
	// Resource is the singular name used as the request wrapper key, e.g. "project_task".
	Resource() string
	Sides() (models.LinkSide, models.LinkSide)
	List(ctx context.Context, filters []repository.LinkFilter, limit, offset int) ([]models.Link, error)
	Get(ctx context.Context, id uint) (models.Link, error)
	Create(ctx context.Context, in LinkInput) (models.Link, error)
	Update(ctx context.Context, id uint, in LinkInput) (models.Link, error)
	Delete(ctx context.Context, id uint) error
}

type linkService[T any, PT repository.LinkRecord[T]] struct {
	repo *repository.LinkRepository[T, PT]
	rdb  *redis.Client
}

// NewLinkService wraps the repository for join model T.
func NewLinkService[T any, PT repository.LinkRecord[T]](repo *repository.LinkRepository[T, PT], rdb *redis.Client) LinkService {
	return &linkService[T, PT]{repo: repo, rdb: rdb}
}

func (s *linkService[T, PT]) Table() string { return s.repo.Table() }

func (s *linkService[T, PT]) Resource() string { return strings.TrimSuffix(s.repo.Table(), "s") }

func (s *linkService[T, PT]) Sides() (models.LinkSide, models.LinkSide) { return s.repo.Sides() }

func (s *linkService[T, PT]) List(ctx context.Context, filters []repository.LinkFilter, limit, offset int) ([]models.Link, error) {
	rows, err := s.repo.List(ctx, filters, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]models.Link, len(rows))
	for i := range rows {
		out[i] = PT(&rows[i])
	}
	return out, nil
}

func (s *linkService[T, PT]) Get(ctx context.Context, id uint) (models.Link, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (s *linkService[T, PT]) Create(ctx context.Context, in LinkInput) (models.Link, error) {
	row := PT(new(T))
	row.SetIDs(derefID(in.LeftID), derefID(in.RightID))
	if err := s.validate(ctx, row, 0); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, err
	}
	s.invalidate(ctx, row)
	return row, nil
}

func (s *linkService[T, PT]) Update(ctx context.Context, id uint, in LinkInput) (models.Link, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *row

	left, right := row.LeftID(), row.RightID()
	if in.LeftID != nil {
		left = *in.LeftID
	}
	if in.RightID != nil {
		right = *in.RightID
	}
	row.SetIDs(left, right)

	if err := s.validate(ctx, row, id); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, row); err != nil {
		return nil, err
	}
	s.invalidate(ctx, PT(&before), row)
	return row, nil
}

func (s *linkService[T, PT]) Delete(ctx context.Context, id uint) error {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, row)
	return nil
}

// validate reports missing rows on either side before the pair check.
func (s *linkService[T, PT]) validate(ctx context.Context, row PT, exceptID uint) error {
	left, right := s.repo.Sides()
	var v validationErrors
	for _, side := range []struct {
		side models.LinkSide
		id   uint
	}{{left, row.LeftID()}, {right, row.RightID()}} {
		ok, err := s.repo.RowExists(ctx, side.side, side.id)
		if err != nil {
			return err
		}
		if !ok {
			v.add("%s must exist", side.side.Label)
		}
	}
	if len(v) > 0 {
		return v.err()
	}

	taken, err := s.repo.PairTaken(ctx, row.LeftID(), row.RightID(), exceptID)
	if err != nil {
		return err
	}
	if taken {
		v.add("%s has already been taken", right.Label)
	}
	return v.err()
}

// invalidate drops cached projects and profiles whose embedded lists changed.
func (s *linkService[T, PT]) invalidate(ctx context.Context, rows ...PT) {
	if s.rdb == nil {
		return
	}
	left, right := s.repo.Sides()
	var projects, users []uint
	for _, row := range rows {
		for _, side := range []struct {
			side models.LinkSide
			id   uint
		}{{left, row.LeftID()}, {right, row.RightID()}} {
			switch side.side.Table {
			case "projects":
				projects = append(projects, side.id)
			case "users":
				users = append(users, side.id)
			}
		}
	}
	cache.InvalidateProject(ctx, s.rdb, projects...)
	if s.repo.Table() == "user_projects" {
		cache.InvalidateUserProfile(ctx, s.rdb, users...)
	}
}

func derefID(id *uint) uint {
	if id == nil {
		return 0
	}
	return *id
}
