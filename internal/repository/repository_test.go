package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/notification"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestGetByEmail_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`SELECT .* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}))

	u, err := repo.GetByEmail(context.Background(), "Nobody@CareLink.be ")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.Nil(t, u)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRevoke_ReportsWhetherAnythingChanged(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewTokenRepository(db)

	mock.ExpectExec(`UPDATE "user_tokens"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "user_tokens"`).WillReturnResult(sqlmock.NewResult(0, 0))

	revoked, err := repo.Revoke(context.Background(), "hash", time.Now())
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = repo.Revoke(context.Background(), "hash", time.Now())
	require.NoError(t, err)
	assert.False(t, revoked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHasOpenInvoice(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewBillingRepository(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "invoices"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	ok, err := repo.HasOpenInvoice(context.Background(), uuid.New(), start, start.AddDate(0, 1, -1))
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRead_ForeignNotification(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewNotificationRepository(db)

	mock.ExpectExec(`UPDATE "notifications"`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkRead(context.Background(), uuid.New(), uuid.New(), time.Now())
	assert.ErrorIs(t, err, notification.ErrNotificationNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteOrphanTimeslots_NoInput(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewScheduleRepository(db)

	removed, err := repo.DeleteOrphanTimeslots(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, removed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaginate(t *testing.T) {
	offset, limit := paginate(0, 0)
	assert.Equal(t, 0, offset)
	assert.Equal(t, 20, limit)

	offset, limit = paginate(3, 10)
	assert.Equal(t, 20, offset)
	assert.Equal(t, 10, limit)

	_, limit = paginate(1, 500)
	assert.Equal(t, 20, limit)
}
