package external

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"gov_queue/internal/models"
	"gov_queue/internal/queue"
)

// MemoryAppointments - сервис записей в памяти для dev-режима и тестов.
type MemoryAppointments struct {
	mu    sync.RWMutex
	items map[uuid.UUID]models.Appointment
	// FailUpdates заставляет SetAppointmentStatus возвращать ошибку.
	FailUpdates bool
}

func NewMemoryAppointments(appts ...models.Appointment) *MemoryAppointments {
	m := &MemoryAppointments{items: make(map[uuid.UUID]models.Appointment)}
	for _, a := range appts {
		m.Put(a)
	}
	return m
}

func (m *MemoryAppointments) Put(a models.Appointment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[a.ID] = a
}

func (m *MemoryAppointments) GetAppointment(_ context.Context, id uuid.UUID) (*models.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", queue.ErrAppointmentNotFound, id)
	}
	return &a, nil
}

func (m *MemoryAppointments) SetAppointmentStatus(_ context.Context, id uuid.UUID, status models.AppointmentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUpdates {
		return fmt.Errorf("%w: appointments", ErrUnavailable)
	}
	a, ok := m.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", queue.ErrAppointmentNotFound, id)
	}
	a.Status = status
	m.items[id] = a
	return nil
}

// MemoryDirectory - справочник услуг в памяти.
type MemoryDirectory struct {
	mu       sync.RWMutex
	services map[uuid.UUID]models.Service
}

func NewMemoryDirectory(services ...models.Service) *MemoryDirectory {
	d := &MemoryDirectory{services: make(map[uuid.UUID]models.Service)}
	for _, s := range services {
		d.services[s.ID] = s
	}
	return d
}

func (d *MemoryDirectory) GetService(_ context.Context, id uuid.UUID) (*models.Service, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.services[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, id)
	}
	return &s, nil
}

var (
	_ queue.AppointmentService = (*AppointmentClient)(nil)
	_ queue.AppointmentService = (*MemoryAppointments)(nil)
	_ queue.DirectoryService   = (*DirectoryClient)(nil)
	_ queue.DirectoryService   = (*MemoryDirectory)(nil)
)
