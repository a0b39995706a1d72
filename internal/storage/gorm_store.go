package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gov_queue/internal/models"
	"gov_queue/internal/queue"
)

// GormStore хранит сессии и записи очереди в Postgres.
//
// Блокировка сессии - SELECT ... FOR UPDATE строки queue_sessions внутри
// транзакции: join и advance одной сессии выполняются по очереди, разные
// сессии не мешают друг другу. Уникальные индексы (session_id, position) и
// частичный (session_id, appointment_id) для активных записей страхуют
// инварианты на уровне БД.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Sessions() queue.SessionStore { return gormSessions{db: s.db} }
func (s *GormStore) Entries() queue.EntryStore    { return gormEntries{db: s.db} }

func (s *GormStore) InSession(ctx context.Context, sessionID uuid.UUID, fn func(tx queue.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked models.QueueSession
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&locked, "id = ?", sessionID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return queue.ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("lock session: %w", err)
		}
		return fn(&GormStore{db: tx})
	})
}

type gormSessions struct {
	db *gorm.DB
}

func (r gormSessions) GetOrCreate(ctx context.Context, key queue.SessionKey, d queue.SessionDefaults) (*models.QueueSession, error) {
	scope := models.ScopeKey(key.DepartmentID, key.ServiceID, key.Date)
	db := r.db.WithContext(ctx)

	var existing models.QueueSession
	err := db.Where("scope_key = ?", scope).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find session: %w", err)
	}

	created := models.QueueSession{
		ID:                        uuid.New(),
		ScopeKey:                  scope,
		DepartmentID:              key.DepartmentID,
		ServiceID:                 key.ServiceID,
		SessionDate:               key.Date,
		Status:                    models.SessionActive,
		MaxCapacity:               d.MaxCapacity,
		AverageServiceTimeMinutes: d.AverageServiceMinutes,
		SessionStart:              d.Start,
	}
	// проигравший гонку создатель перечитывает строку победителя
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope_key"}},
		DoNothing: true,
	}).Create(&created).Error; err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	var s models.QueueSession
	if err := db.Where("scope_key = ?", scope).First(&s).Error; err != nil {
		return nil, fmt.Errorf("reload session: %w", err)
	}
	return &s, nil
}

func (r gormSessions) Get(ctx context.Context, id uuid.UUID) (*models.QueueSession, error) {
	var s models.QueueSession
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, queue.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &s, nil
}

func (r gormSessions) List(ctx context.Context, f queue.SessionFilter) ([]models.QueueSession, error) {
	q := r.db.WithContext(ctx).Model(&models.QueueSession{})
	if f.DepartmentID != nil {
		q = q.Where("department_id = ?", *f.DepartmentID)
	}
	if f.Date != nil {
		q = q.Where("session_date = ?", *f.Date)
	}
	if f.Before != nil {
		q = q.Where("session_date < ?", *f.Before)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	var out []models.QueueSession
	if err := q.Order("session_date ASC, created_at ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}

func (r gormSessions) SetStatus(ctx context.Context, id uuid.UUID, status models.SessionStatus, at time.Time) (*models.QueueSession, error) {
	updates := map[string]any{"status": status, "updated_at": at}
	if status == models.SessionClosed {
		updates["session_end"] = at
	}
	res := r.db.WithContext(ctx).Model(&models.QueueSession{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("set session status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, queue.ErrSessionNotFound
	}
	return r.Get(ctx, id)
}

func (r gormSessions) IncrementPositionAndServed(ctx context.Context, id uuid.UUID) (int, error) {
	var s models.QueueSession
	res := r.db.WithContext(ctx).Model(&s).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "current_position"}}}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"current_position": gorm.Expr("current_position + 1"),
			"total_served":     gorm.Expr("total_served + 1"),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("increment position: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, queue.ErrSessionNotFound
	}
	return s.CurrentPosition, nil
}

func (r gormSessions) SetCurrentPosition(ctx context.Context, id uuid.UUID, position int) error {
	// current_position никогда не уменьшается
	res := r.db.WithContext(ctx).Model(&models.QueueSession{}).
		Where("id = ? AND current_position <= ?", id, position).
		UpdateColumn("current_position", position)
	if res.Error != nil {
		return fmt.Errorf("set current position: %w", res.Error)
	}
	return nil
}

func (r gormSessions) RecordServiceTime(ctx context.Context, id uuid.UUID, minutes float64) error {
	s, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	s.RecordServiceTime(minutes)
	err = r.db.WithContext(ctx).Model(&models.QueueSession{}).Where("id = ?", id).
		UpdateColumns(map[string]any{
			"observed_service_minutes": s.ObservedServiceMinutes,
			"observed_samples":         s.ObservedSamples,
		}).Error
	if err != nil {
		return fmt.Errorf("record service time: %w", err)
	}
	return nil
}

func (r gormSessions) SetManualServiceMinutes(ctx context.Context, id uuid.UUID, minutes *float64) (*models.QueueSession, error) {
	res := r.db.WithContext(ctx).Model(&models.QueueSession{}).Where("id = ?", id).
		Update("manual_service_minutes", minutes)
	if res.Error != nil {
		return nil, fmt.Errorf("set manual service minutes: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, queue.ErrSessionNotFound
	}
	return r.Get(ctx, id)
}

type gormEntries struct {
	db *gorm.DB
}

func (r gormEntries) NextPosition(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var maxPosition int
	row := r.db.WithContext(ctx).Model(&models.QueueEntry{}).
		Where("queue_session_id = ?", sessionID).
		Select("COALESCE(MAX(position),0)").Row()
	if err := row.Scan(&maxPosition); err != nil {
		return 0, fmt.Errorf("next position: %w", err)
	}
	return maxPosition + 1, nil
}

func (r gormEntries) Insert(ctx context.Context, entry *models.QueueEntry) error {
	db := r.db.WithContext(ctx)
	var n int64
	err := db.Model(&models.QueueEntry{}).
		Where("queue_session_id = ? AND appointment_id = ? AND status IN ?", entry.QueueSessionID, entry.AppointmentID, models.ActiveEntryStatuses).
		Count(&n).Error
	if err != nil {
		return fmt.Errorf("check duplicate appointment: %w", err)
	}
	if n > 0 {
		return queue.ErrDuplicateAppointment
	}
	if err := db.Create(entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %w", queue.ErrDuplicateAppointment, err)
		}
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

func (r gormEntries) Get(ctx context.Context, id uuid.UUID) (*models.QueueEntry, error) {
	var e models.QueueEntry
	err := r.db.WithContext(ctx).First(&e, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, queue.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return &e, nil
}

func (r gormEntries) UpdateStatus(ctx context.Context, id uuid.UUID, change queue.StatusChange) (*models.QueueEntry, error) {
	e, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	e.Stamp(change.Status, change.At)
	if change.OfficerID != nil {
		e.OfficerID = change.OfficerID
	}
	if len(change.Metadata) > 0 {
		if e.Metadata == nil {
			e.Metadata = map[string]any{}
		}
		for k, v := range change.Metadata {
			e.Metadata[k] = v
		}
	}
	err = r.db.WithContext(ctx).Model(&models.QueueEntry{}).Where("id = ?", id).
		UpdateColumns(map[string]any{
			"status":       e.Status,
			"officer_id":   e.OfficerID,
			"metadata":     e.Metadata,
			"called_at":    e.CalledAt,
			"served_at":    e.ServedAt,
			"completed_at": e.CompletedAt,
			"updated_at":   e.UpdatedAt,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("update entry status: %w", err)
	}
	return e, nil
}

func (r gormEntries) UpdateEstimates(ctx context.Context, estimates map[uuid.UUID]int) error {
	db := r.db.WithContext(ctx)
	for id, minutes := range estimates {
		if err := db.Model(&models.QueueEntry{}).Where("id = ?", id).
			UpdateColumn("estimated_wait_minutes", minutes).Error; err != nil {
			return fmt.Errorf("update estimate %s: %w", id, err)
		}
	}
	return nil
}

func (r gormEntries) List(ctx context.Context, sessionID uuid.UUID, page, limit int) (*queue.EntryPage, error) {
	db := r.db.WithContext(ctx).Model(&models.QueueEntry{}).Where("queue_session_id = ?", sessionID)
	out := &queue.EntryPage{Page: page, Limit: limit}
	if err := db.Count(&out.Total).Error; err != nil {
		return nil, fmt.Errorf("count entries: %w", err)
	}
	if err := db.Order("position ASC").Offset((page - 1) * limit).Limit(limit).Find(&out.Entries).Error; err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return out, nil
}

func (r gormEntries) ListByStatus(ctx context.Context, sessionID uuid.UUID, statuses ...models.EntryStatus) ([]models.QueueEntry, error) {
	q := r.db.WithContext(ctx).Where("queue_session_id = ?", sessionID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var out []models.QueueEntry
	if err := q.Order("position ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list entries by status: %w", err)
	}
	return out, nil
}

func (r gormEntries) CountByStatus(ctx context.Context, sessionID uuid.UUID) (queue.StatusCounts, error) {
	var rows []struct {
		Status models.EntryStatus
		N      int
	}
	err := r.db.WithContext(ctx).Model(&models.QueueEntry{}).
		Select("status, COUNT(*) AS n").
		Where("queue_session_id = ?", sessionID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count entries by status: %w", err)
	}
	counts := queue.StatusCounts{}
	for _, row := range rows {
		counts[row.Status] = row.N
	}
	return counts, nil
}

func (r gormEntries) FindCurrentServing(ctx context.Context, sessionID uuid.UUID, currentPosition int) (*models.QueueEntry, error) {
	return r.first(ctx, r.db.Where("queue_session_id = ? AND position = ? AND status IN ?",
		sessionID, currentPosition, []models.EntryStatus{models.EntryCalled, models.EntryServing}))
}

func (r gormEntries) FindByPosition(ctx context.Context, sessionID uuid.UUID, position int) (*models.QueueEntry, error) {
	return r.first(ctx, r.db.Where("queue_session_id = ? AND position = ?", sessionID, position))
}

func (r gormEntries) FindActiveByAppointment(ctx context.Context, appointmentID uuid.UUID) (*models.QueueEntry, error) {
	return r.first(ctx, r.db.Where("appointment_id = ? AND status IN ?", appointmentID, models.ActiveEntryStatuses))
}

func (r gormEntries) FindActiveForUser(ctx context.Context, userID uuid.UUID, day time.Time, appointmentID *uuid.UUID) (*models.QueueEntry, error) {
	q := r.db.
		Joins("JOIN queue_sessions ON queue_sessions.id = queue_entries.queue_session_id").
		Where("queue_entries.user_id = ? AND queue_entries.status IN ? AND queue_sessions.session_date = ?",
			userID, []models.EntryStatus{models.EntryWaiting, models.EntryCalled}, day)
	if appointmentID != nil {
		q = q.Where("queue_entries.appointment_id = ?", *appointmentID)
	}
	return r.first(ctx, q.Order("queue_entries.created_at DESC"))
}

// first возвращает nil без ошибки, если строк нет.
func (r gormEntries) first(ctx context.Context, q *gorm.DB) (*models.QueueEntry, error) {
	var out []models.QueueEntry
	if err := q.WithContext(ctx).Limit(1).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("find entry: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}
