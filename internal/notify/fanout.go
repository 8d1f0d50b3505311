package notify

import (
	"context"
	"sync"

	"github.com/senyabanana/tender-platform/internal/models"

	"github.com/sirupsen/logrus"
)

// LogFanout пишет уведомления в лог. Используется, когда внешняя доставка не настроена.
type LogFanout struct {
	Logger *logrus.Entry
}

// NotifyOrganization логирует in-app уведомление.
func (f LogFanout) NotifyOrganization(_ context.Context, organizationID, excludeUserID string, n models.Notification) error {
	f.Logger.WithFields(logrus.Fields{
		"channel":         models.InAppChannel,
		"type":            n.Type,
		"organization_id": organizationID,
		"exclude_user_id": excludeUserID,
	}).Info(n.Title)
	return nil
}

// EmailOrganization логирует email-уведомление.
func (f LogFanout) EmailOrganization(_ context.Context, organizationID string, n models.Notification) error {
	f.Logger.WithFields(logrus.Fields{
		"channel":         models.EmailChannel,
		"type":            n.Type,
		"organization_id": organizationID,
	}).Info(n.Title)
	return nil
}

// Delivery - одна доставка, записанная Recorder.
type Delivery struct {
	Channel        models.NotificationChannel
	OrganizationID string
	ExcludeUserID  string
	Notification   models.Notification
}

// Recorder запоминает доставки. Err, если задан, возвращается из каждого вызова.
type Recorder struct {
	mu         sync.Mutex
	deliveries []Delivery
	Err        error
}

// NotifyOrganization записывает in-app доставку.
func (r *Recorder) NotifyOrganization(_ context.Context, organizationID, excludeUserID string, n models.Notification) error {
	r.record(Delivery{Channel: models.InAppChannel, OrganizationID: organizationID, ExcludeUserID: excludeUserID, Notification: n})
	return r.Err
}

// EmailOrganization записывает email доставку.
func (r *Recorder) EmailOrganization(_ context.Context, organizationID string, n models.Notification) error {
	r.record(Delivery{Channel: models.EmailChannel, OrganizationID: organizationID, Notification: n})
	return r.Err
}

func (r *Recorder) record(d Delivery) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, d)
}

// Deliveries возвращает копию записанных доставок.
func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

// Reset очищает записанные доставки.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = nil
}

// OfType возвращает доставки заданного типа.
func (r *Recorder) OfType(t models.NotificationType) []Delivery {
	var out []Delivery
	for _, d := range r.Deliveries() {
		if d.Notification.Type == t {
			out = append(out, d)
		}
	}
	return out
}
