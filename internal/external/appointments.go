package external

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"gov_queue/internal/models"
	"gov_queue/internal/queue"
)

// AppointmentClient is the HTTP client of the appointment service.
//
//	GET   {base}/appointments/{id}
//	PATCH {base}/appointments/{id}/status  {"status": "confirmed"}
type AppointmentClient struct {
	c *client
}

func NewAppointmentClient(baseURL string, timeout time.Duration, bc BreakerConfig) *AppointmentClient {
	return &AppointmentClient{c: newClient("appointments", baseURL, timeout, bc)}
}

func (a *AppointmentClient) GetAppointment(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	data, err := a.c.do(ctx, http.MethodGet, "/appointments/"+id.String(), nil)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", queue.ErrAppointmentNotFound, id)
		}
		return nil, err
	}
	var appt models.Appointment
	if err := json.Unmarshal(data, &appt); err != nil {
		return nil, fmt.Errorf("appointments: decode %s: %w", id, err)
	}
	return &appt, nil
}

func (a *AppointmentClient) SetAppointmentStatus(ctx context.Context, id uuid.UUID, status models.AppointmentStatus) error {
	_, err := a.c.do(ctx, http.MethodPatch, "/appointments/"+id.String()+"/status", map[string]any{"status": status})
	if isNotFound(err) {
		return fmt.Errorf("%w: %s", queue.ErrAppointmentNotFound, id)
	}
	return err
}
