// Package course отдаёт каталог курсов с учётом премиального доступа.
// Сам каталог кешируется, активность подписки - нет: она читается на каждый запрос.
package course

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/premium-access/internal/access"
	"github.com/magabrotheeeer/premium-access/internal/lib/sl"
	"github.com/magabrotheeeer/premium-access/internal/models"
)

// CourseRepository читает каталог.
type CourseRepository interface {
	GetCourse(ctx context.Context, id string) (*models.Course, error)
	ListCourses(ctx context.Context, limit, offset int) ([]*models.Course, error)
}

// Cache описывает методы для кеширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(ctx context.Context, key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// SubscriptionChecker отвечает, есть ли у субъекта активная подписка.
type SubscriptionChecker interface {
	HasActiveSubscription(ctx context.Context, principalID string) bool
}

// CourseService реализует чтение каталога.
type CourseService struct {
	repo      CourseRepository
	cache     Cache
	subs      SubscriptionChecker
	evaluator *access.Evaluator
	ttl       time.Duration
	log       *slog.Logger
}

// NewCourseService создает новый экземпляр CourseService.
func NewCourseService(repo CourseRepository, cache Cache, subs SubscriptionChecker, evaluator *access.Evaluator, ttl time.Duration, log *slog.Logger) *CourseService {
	return &CourseService{
		repo:      repo,
		cache:     cache,
		subs:      subs,
		evaluator: evaluator,
		ttl:       ttl,
		log:       log,
	}
}

// Read возвращает курс. Премиальный курс без активной подписки неотличим от отсутствующего.
func (s *CourseService) Read(ctx context.Context, principal models.Principal, id string) (*models.Course, error) {
	const op = "course.Read"

	var c *models.Course
	key := "course:" + id
	// Закешированный JSON null считается промахом.
	if !s.fromCache(ctx, key, &c) || c == nil {
		var err error
		c, err = s.repo.GetCourse(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.toCache(ctx, key, c)
	}

	req := access.Request{Principal: principal, Table: access.TableCourses, Op: access.OpSelect, Premium: c.Premium}
	if c.Premium {
		req.ActiveSubscription = s.active(ctx, principal)
	}
	if !s.evaluator.Allowed(req) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return c, nil
}

// List возвращает страницу каталога, из которой убраны недоступные субъекту курсы.
func (s *CourseService) List(ctx context.Context, principal models.Principal, limit, offset int) ([]*models.Course, error) {
	const op = "course.List"

	var courses []*models.Course
	key := fmt.Sprintf("courses:%d:%d", limit, offset)
	if !s.fromCache(ctx, key, &courses) {
		var err error
		courses, err = s.repo.ListCourses(ctx, limit, offset)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.toCache(ctx, key, courses)
	}

	base := access.Request{Principal: principal, Table: access.TableCourses, Op: access.OpSelect}
	for _, c := range courses {
		if c.Premium {
			base.ActiveSubscription = s.active(ctx, principal)
			break
		}
	}
	return access.Filter(s.evaluator, base, courses, func(req access.Request, c *models.Course) access.Request {
		req.Premium = c.Premium
		return req
	}), nil
}

func (s *CourseService) active(ctx context.Context, principal models.Principal) bool {
	if !principal.Valid() {
		return false
	}
	return s.subs.HasActiveSubscription(ctx, principal.ID)
}

func (s *CourseService) fromCache(ctx context.Context, key string, result any) bool {
	found, err := s.cache.Get(ctx, key, result)
	if err != nil {
		s.log.Warn("failed to read from cache", slog.String("key", key), sl.Err(err))
		return false
	}
	return found
}

func (s *CourseService) toCache(ctx context.Context, key string, value any) {
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.log.Warn("failed to add to cache", slog.String("key", key), sl.Err(err))
	}
}
