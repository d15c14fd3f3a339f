package tenant

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/storesync/backend/internal/infrastructure/logger"
)

type scopedRow struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID uuid.UUID `gorm:"type:uuid;not null"`
	Title    string
}

func (scopedRow) TableName() string {
	return "products"
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func TestScope(t *testing.T) {
	t.Run("adds tenant filter", func(t *testing.T) {
		db, mock, mockDB := setupMockDB(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM "products" WHERE "tenant_id" = \$1`).
			WithArgs(tenantID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "title"}))

		var rows []scopedRow
		err := db.Scopes(Scope(tenantID)).Find(&rows).Error
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil tenant aborts", func(t *testing.T) {
		db, mock, mockDB := setupMockDB(t)
		defer mockDB.Close()

		var rows []scopedRow
		err := db.Scopes(Scope(uuid.Nil)).Find(&rows).Error
		assert.ErrorIs(t, err, ErrTenantIDRequired)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFromContext(t *testing.T) {
	_, err := FromContext(context.Background())
	assert.ErrorIs(t, err, ErrTenantIDRequired)

	ctx, _ := logger.WithTenantID(context.Background(), zap.NewNop(), "not-a-uuid")
	_, err = FromContext(ctx)
	assert.ErrorIs(t, err, ErrInvalidTenantID)

	id := uuid.New()
	ctx, _ = logger.WithTenantID(context.Background(), zap.NewNop(), id.String())
	got, err := FromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestContextScope(t *testing.T) {
	db, mock, mockDB := setupMockDB(t)
	defer mockDB.Close()

	id := uuid.New()
	ctx, _ := logger.WithTenantID(context.Background(), zap.NewNop(), id.String())
	mock.ExpectQuery(`SELECT \* FROM "products" WHERE "tenant_id" = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "title"}))

	var rows []scopedRow
	require.NoError(t, db.WithContext(ctx).Scopes(ContextScope(ctx)).Find(&rows).Error)
	assert.NoError(t, mock.ExpectationsWereMet())

	var none []scopedRow
	err := db.Scopes(ContextScope(context.Background())).Find(&none).Error
	assert.ErrorIs(t, err, ErrTenantIDRequired)
}
