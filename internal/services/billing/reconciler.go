package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/premium-access/internal/access"
	"github.com/magabrotheeeer/premium-access/internal/lib/sl"
	"github.com/magabrotheeeer/premium-access/internal/models"
)

// Store даёт реконсилятору транзакции над журналом событий и состояниями подписок.
type Store interface {
	// InTx выполняет fn в одной транзакции; ошибка fn откатывает всё.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	// ListEvents возвращает записи журнала, самые новые первыми.
	ListEvents(ctx context.Context, unprocessedOnly bool, limit, offset int) ([]*models.ProcessedEvent, error)
	// CountUnprocessed считает события, изменение по которым не применилось.
	CountUnprocessed(ctx context.Context) (int, error)
}

// Tx операции внутри транзакции реконсилятора.
type Tx interface {
	// InsertEvent записывает событие; false, если событие с таким ID уже есть.
	InsertEvent(ctx context.Context, ev models.ProcessedEvent) (bool, error)
	// GetEventForUpdate блокирует и возвращает запись журнала; nil, если её нет.
	GetEventForUpdate(ctx context.Context, eventID string) (*models.ProcessedEvent, error)
	// MarkEvent фиксирует итог применения события.
	MarkEvent(ctx context.Context, eventID string, processed bool, reason string) error
	// FindStateForUpdate блокирует и возвращает запись по ссылке на подписку; nil, если её нет.
	FindStateForUpdate(ctx context.Context, subscriptionRef string) (*models.SubscriptionState, error)
	// FindPrincipalByCustomer ищет владельца по ссылке на клиента провайдера; "" если не найден.
	FindPrincipalByCustomer(ctx context.Context, customerRef string) (string, error)
	// UpsertState вставляет или обновляет запись по ссылке на подписку.
	UpsertState(ctx context.Context, st models.SubscriptionState) error
	// Savepoint выполняет fn внутри точки сохранения и откатывается к ней, если fn вернула ошибку.
	Savepoint(ctx context.Context, fn func() error) error
}

// Publisher рассылает уведомления после фиксации транзакции.
type Publisher interface {
	PublishStateChanged(ctx context.Context, change StateChange) error
	PublishReconcileFailed(ctx context.Context, failure FailureNotice) error
}

// Metrics счётчики реконсилятора.
type Metrics interface {
	RecordEvent(kind, outcome string)
	RecordStateWriteFailure(kind string)
}

// StateChange уведомление об изменённом состоянии подписки.
type StateChange struct {
	EventID         string                    `json:"event_id"`
	PrincipalID     string                    `json:"principal_id"`
	SubscriptionRef string                    `json:"subscription_ref"`
	Status          models.SubscriptionStatus `json:"status"`
	Active          bool                      `json:"active"`
}

// FailureNotice уведомление для эксплуатации о событии, которое требует ручного повтора.
type FailureNotice struct {
	EventID string    `json:"event_id"`
	Kind    string    `json:"kind"`
	Reason  string    `json:"reason"`
	At      time.Time `json:"at"`
}

// Result итог обработки события.
type Result struct {
	EventID string
	Kind    Kind
	Outcome Outcome
	State   *models.SubscriptionState // заполнено при OutcomeApplied
	Reason  string                    // заполнено при OutcomeUnapplied
}

// Reconciler применяет события провайдера к состоянию подписок ровно один раз по эффекту.
type Reconciler struct {
	store     Store
	evaluator *access.Evaluator
	publisher Publisher
	metrics   Metrics
	log       *slog.Logger
	now       func() time.Time
}

// Option настраивает Reconciler.
type Option func(*Reconciler)

// WithPublisher подключает рассылку уведомлений.
func WithPublisher(p Publisher) Option {
	return func(r *Reconciler) { r.publisher = p }
}

// WithMetrics подключает счётчики.
func WithMetrics(m Metrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// NewReconciler создаёт новый экземпляр Reconciler.
func NewReconciler(store Store, evaluator *access.Evaluator, log *slog.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:     store,
		evaluator: evaluator,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle обрабатывает событие, уже прошедшее проверку подписи.
//
// Повторная доставка того же ID - успех без побочных эффектов. Если изменение состояния
// не удалось, событие остаётся в журнале с processed=false, а Handle всё равно возвращает
// успех: повтор со стороны провайдера ничего бы не изменил.
func (r *Reconciler) Handle(ctx context.Context, env *Envelope, raw []byte) (Result, error) {
	const op = "billing.Reconciler.Handle"
	log := r.log.With(slog.String("op", op), slog.String("event_id", env.EventID), slog.String("type", env.Type))

	ev, err := Decode(env)
	if err != nil {
		r.recordEvent(Kind(env.Type), OutcomeInvalid)
		log.Warn("rejected invalid event", sl.Err(err))
		return Result{EventID: env.EventID, Kind: Kind(env.Type), Outcome: OutcomeInvalid}, fmt.Errorf("%s: %w", op, err)
	}

	var res Result
	err = r.store.InTx(ctx, func(tx Tx) error {
		inserted, err := tx.InsertEvent(ctx, models.ProcessedEvent{
			EventID:    env.EventID,
			Type:       env.Type,
			Payload:    raw,
			ReceivedAt: r.now().UTC(),
		})
		if err != nil {
			return err
		}
		if !inserted {
			res = Result{EventID: env.EventID, Kind: Kind(env.Type), Outcome: OutcomeDuplicate}
			return nil
		}
		res, err = r.apply(ctx, tx, ev)
		return err
	})
	if err != nil {
		log.Error("failed to reconcile event", sl.Err(err))
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	r.finish(ctx, log, res)
	return res, nil
}

// Replay повторно применяет записанное, но не применённое событие. Только для повышенных субъектов.
func (r *Reconciler) Replay(ctx context.Context, principal models.Principal, eventID string) (Result, error) {
	const op = "billing.Reconciler.Replay"
	log := r.log.With(slog.String("op", op), slog.String("event_id", eventID), sl.Principal(principal))

	if !r.evaluator.Allowed(access.Request{Principal: principal, Table: access.TableProcessedEvents, Op: access.OpUpdate}) {
		return Result{}, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	var res Result
	err := r.store.InTx(ctx, func(tx Tx) error {
		rec, err := tx.GetEventForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if rec == nil {
			return models.ErrNotFound
		}
		if rec.Processed {
			res = Result{EventID: eventID, Kind: Kind(rec.Type), Outcome: OutcomeDuplicate}
			return nil
		}
		env, err := ParseEnvelope(rec.Payload)
		if err != nil {
			return err
		}
		ev, err := Decode(env)
		if err != nil {
			return err
		}
		res, err = r.apply(ctx, tx, ev)
		return err
	})
	if err != nil {
		log.Error("failed to replay event", sl.Err(err))
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("event replayed", slog.String("outcome", string(res.Outcome)))
	r.finish(ctx, log, res)
	return res, nil
}

// ListEvents возвращает журнал событий. Только для повышенных субъектов, остальным - пустой список.
func (r *Reconciler) ListEvents(ctx context.Context, principal models.Principal, unprocessedOnly bool, limit, offset int) ([]*models.ProcessedEvent, error) {
	if !r.evaluator.Allowed(access.Request{Principal: principal, Table: access.TableProcessedEvents, Op: access.OpSelect}) {
		return []*models.ProcessedEvent{}, nil
	}
	return r.store.ListEvents(ctx, unprocessedOnly, limit, offset)
}

// apply применяет событие внутри транзакции. Ошибки изменения состояния не прерывают
// транзакцию: они откатываются к точке сохранения и записываются в журнал.
func (r *Reconciler) apply(ctx context.Context, tx Tx, ev Event) (Result, error) {
	meta := ev.EventMeta()
	res := Result{EventID: meta.EventID, Kind: meta.Kind}

	var tr Transition
	stateErr := tx.Savepoint(ctx, func() error {
		ref, customer, principalID := references(ev)

		var current *models.SubscriptionState
		if ref != "" {
			var err error
			current, err = tx.FindStateForUpdate(ctx, ref)
			if err != nil {
				return fmt.Errorf("%w: %v", models.ErrStateWrite, err)
			}
		}
		if current != nil {
			principalID = current.PrincipalID
		} else if principalID == "" && customer != "" {
			var err error
			principalID, err = tx.FindPrincipalByCustomer(ctx, customer)
			if err != nil {
				return fmt.Errorf("%w: %v", models.ErrStateWrite, err)
			}
		}

		var err error
		tr, err = Apply(current, ev, principalID, r.now().UTC())
		if err != nil {
			return err
		}
		if tr.Next == nil {
			return nil
		}
		if err := tx.UpsertState(ctx, *tr.Next); err != nil {
			return fmt.Errorf("%w: %v", models.ErrStateWrite, err)
		}
		return nil
	})

	if stateErr != nil {
		res.Outcome = OutcomeUnapplied
		res.Reason = stateErr.Error()
		if err := tx.MarkEvent(ctx, meta.EventID, false, res.Reason); err != nil {
			return Result{}, err
		}
		return res, nil
	}

	res.Outcome = tr.Outcome
	res.State = tr.Next
	if err := tx.MarkEvent(ctx, meta.EventID, true, ""); err != nil {
		return Result{}, err
	}
	return res, nil
}

// finish пишет метрики, логи и уведомления уже после фиксации транзакции.
func (r *Reconciler) finish(ctx context.Context, log *slog.Logger, res Result) {
	r.recordEvent(res.Kind, res.Outcome)

	switch res.Outcome {
	case OutcomeApplied:
		log.Info("subscription state updated",
			slog.String("subscription_ref", res.State.SubscriptionRef),
			slog.String("status", string(res.State.Status)))
		if r.publisher != nil {
			change := StateChange{
				EventID:         res.EventID,
				PrincipalID:     res.State.PrincipalID,
				SubscriptionRef: res.State.SubscriptionRef,
				Status:          res.State.Status,
				Active:          res.State.HasActiveAccess(r.now()),
			}
			if err := r.publisher.PublishStateChanged(ctx, change); err != nil {
				log.Warn("failed to publish state change", sl.Err(err))
			}
		}
	case OutcomeUnapplied:
		log.Error("subscription state write failed, manual replay required",
			slog.String("reason", res.Reason))
		if r.metrics != nil {
			r.metrics.RecordStateWriteFailure(string(res.Kind))
		}
		if r.publisher != nil {
			notice := FailureNotice{EventID: res.EventID, Kind: string(res.Kind), Reason: res.Reason, At: r.now().UTC()}
			if err := r.publisher.PublishReconcileFailed(ctx, notice); err != nil {
				log.Warn("failed to publish reconcile failure", sl.Err(err))
			}
		}
	default:
		log.Info("event recorded without state change", slog.String("outcome", string(res.Outcome)))
	}
}

func (r *Reconciler) recordEvent(kind Kind, outcome Outcome) {
	if r.metrics != nil {
		r.metrics.RecordEvent(string(kind), string(outcome))
	}
}

// references достаёт из события ссылку на подписку, клиента и владельца из metadata.
func references(ev Event) (ref, customer, principalID string) {
	switch e := ev.(type) {
	case SubscriptionCreated:
		return e.SubscriptionRef, e.CustomerRef, e.PrincipalID
	case SubscriptionUpdated:
		return e.SubscriptionRef, e.CustomerRef, e.PrincipalID
	case SubscriptionDeleted:
		return e.SubscriptionRef, e.CustomerRef, e.PrincipalID
	case InvoicePaymentFailed:
		return e.SubscriptionRef, e.CustomerRef, e.PrincipalID
	default:
		return "", "", ""
	}
}
