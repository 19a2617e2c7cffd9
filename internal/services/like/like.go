// Package like управляет лайками курсов. Владелец лайка - профиль пользователя,
// поэтому каждый вызов сначала определяет профиль вызывающего.
package like

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/premium-access/internal/access"
	"github.com/magabrotheeeer/premium-access/internal/lib/sl"
	"github.com/magabrotheeeer/premium-access/internal/models"
)

// LikeRepository определяет методы для работы с лайками в хранилище.
type LikeRepository interface {
	CreateLike(ctx context.Context, userID, courseID string) (*models.Like, error)
	ListLikes(ctx context.Context, filter models.LikeFilter, limit, offset int) ([]*models.Like, error)
	RemoveLike(ctx context.Context, userID, courseID string) (int, error)
}

// ProfileResolver определяет профиль субъекта.
type ProfileResolver interface {
	// ProfileID возвращает пустую строку, если профиля нет.
	ProfileID(ctx context.Context, principal models.Principal) (string, error)
}

// CourseReader читает курс с проверкой доступа. Недоступный курс отдаётся как models.ErrNotFound.
type CourseReader interface {
	Read(ctx context.Context, principal models.Principal, id string) (*models.Course, error)
}

// LikeService реализует бизнес-логику лайков.
type LikeService struct {
	repo      LikeRepository
	profiles  ProfileResolver
	courses   CourseReader
	evaluator *access.Evaluator
	log       *slog.Logger
}

// NewLikeService создает новый экземпляр LikeService.
func NewLikeService(repo LikeRepository, profiles ProfileResolver, courses CourseReader, evaluator *access.Evaluator, log *slog.Logger) *LikeService {
	return &LikeService{
		repo:      repo,
		profiles:  profiles,
		courses:   courses,
		evaluator: evaluator,
		log:       log,
	}
}

// Create ставит лайк от имени профиля вызывающего. Лайкнуть можно только видимый курс,
// поэтому закрытый премиальный курс неотличим от несуществующего.
func (s *LikeService) Create(ctx context.Context, principal models.Principal, req models.DummyLike) (*models.Like, error) {
	const op = "like.Create"
	profileID, err := s.profiles.ProfileID(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if profileID == "" || !s.allowed(principal, profileID, access.OpInsert, profileID) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if _, err := s.courses.Read(ctx, principal, req.CourseID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	l, err := s.repo.CreateLike(ctx, profileID, req.CourseID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("like created", slog.String("course_id", req.CourseID), sl.Principal(principal))
	return l, nil
}

// List возвращает лайки, видимые вызывающему. Без фильтра обычный пользователь
// получает свои лайки; фильтр по чужому профилю даёт пустой список.
func (s *LikeService) List(ctx context.Context, principal models.Principal, filter models.LikeFilter, limit, offset int) ([]*models.Like, error) {
	const op = "like.List"
	profileID, err := s.profiles.ProfileID(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !principal.Elevated() {
		if profileID == "" {
			return []*models.Like{}, nil
		}
		if filter.UserID == nil {
			filter.UserID = &profileID
		}
	}

	likes, err := s.repo.ListLikes(ctx, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	base := access.Request{Principal: principal, ProfileID: profileID, Table: access.TableLikes, Op: access.OpSelect}
	return access.Filter(s.evaluator, base, likes, func(req access.Request, l *models.Like) access.Request {
		req.OwnerID = l.UserID
		return req
	}), nil
}

// Remove снимает собственный лайк.
func (s *LikeService) Remove(ctx context.Context, principal models.Principal, courseID string) error {
	const op = "like.Remove"
	profileID, err := s.profiles.ProfileID(ctx, principal)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if profileID == "" || !s.allowed(principal, profileID, access.OpDelete, profileID) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	n, err := s.repo.RemoveLike(ctx, profileID, courseID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return nil
}

func (s *LikeService) allowed(principal models.Principal, profileID string, op access.Operation, owner string) bool {
	return s.evaluator.Allowed(access.Request{
		Principal: principal,
		ProfileID: profileID,
		Table:     access.TableLikes,
		Op:        op,
		OwnerID:   owner,
	})
}
