package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/sajib-dev/fixmate/backend/internal/models"
)

// PostgresNotificationArchive implements engine.NotificationArchive on
// PostgreSQL. The router's in-memory state stays authoritative; the archive
// makes notifications and their dedup keys survive a restart.
type PostgresNotificationArchive struct {
	db *gorm.DB
}

func NewPostgresNotificationArchive(db *gorm.DB) *PostgresNotificationArchive {
	return &PostgresNotificationArchive{db: db}
}

func (a *PostgresNotificationArchive) SaveBidNotification(ctx context.Context, n *models.BidNotification) error {
	return a.db.WithContext(ctx).Create(n).Error
}

func (a *PostgresNotificationArchive) MarkBidNotificationRead(ctx context.Context, id string) error {
	return a.db.WithContext(ctx).Model(&models.BidNotification{}).Where("id = ?", id).Update("is_read", true).Error
}

func (a *PostgresNotificationArchive) SaveJobNotification(ctx context.Context, n *models.JobNotification) error {
	return a.db.WithContext(ctx).Create(n).Error
}

func (a *PostgresNotificationArchive) BidNotifications(ctx context.Context) ([]models.BidNotification, error) {
	var out []models.BidNotification
	err := a.db.WithContext(ctx).Order("created_at DESC").Find(&out).Error
	return out, err
}

func (a *PostgresNotificationArchive) JobNotifications(ctx context.Context) ([]models.JobNotification, error) {
	var out []models.JobNotification
	err := a.db.WithContext(ctx).Order("created_at DESC").Find(&out).Error
	return out, err
}
