package deliverylog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "subtrack-notifier/internal/common/errors"
	"subtrack-notifier/internal/common/logger"
	"subtrack-notifier/internal/models"
)

func testKey() models.DeliveryKey {
	return models.DeliveryKey{
		TenantID:     "t1",
		EntityID:     "c-1",
		TriggerRef:   "2025-02-22",
		RecipientRef: "u-bob",
		Role:         models.RoleOwner,
		Channel:      models.ChannelEmail,
	}
}

func TestClaim_Granted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO delivery_log`).
		WithArgs("t1", "c-1", "2025-02-22", "u-bob", "owner", "email", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	log := New(db, nil, logger.NewNoOpLogger())
	granted, err := log.Claim(context.Background(), testKey())
	require.NoError(t, err)
	assert.True(t, granted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaim_DuplicateIsNotAnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO delivery_log`).
		WillReturnError(&pq.Error{Code: "23505"})

	log := New(db, nil, logger.NewNoOpLogger())
	granted, err := log.Claim(context.Background(), testKey())
	require.NoError(t, err)
	assert.False(t, granted, "duplicate claim must be denied silently")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaim_OtherPersistenceErrorPropagates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO delivery_log`).
		WillReturnError(errors.New("connection reset"))

	log := New(db, nil, logger.NewNoOpLogger())
	granted, err := log.Claim(context.Background(), testKey())
	assert.False(t, granted)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeClaimFailed))
}

func TestRelease(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM delivery_log`).
		WithArgs("t1", "c-1", "2025-02-22", "u-bob", "owner", "email").
		WillReturnResult(sqlmock.NewResult(0, 1))

	log := New(db, nil, logger.NewNoOpLogger())
	require.NoError(t, log.Release(context.Background(), testKey()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Two roles for the same recipient are independent keys: both inserts run.
func TestClaim_PerRoleKeys(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO delivery_log`).
		WithArgs("t1", "c-1", "2025-02-22", "u-bob", "owner2", "email", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO delivery_log`).
		WithArgs("t1", "c-1", "2025-02-22", "u-bob", "dept_head", "email", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	log := New(db, nil, logger.NewNoOpLogger())

	key := testKey()
	key.Role = models.RoleOwner2
	granted, err := log.Claim(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, granted)

	key.Role = models.RoleDeptHead
	granted, err = log.Claim(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, granted)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaim_CacheFastPath(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rdb, redisMock := redismock.NewClientMock()
	cache := NewClaimCache(rdb, time.Hour)
	key := testKey()

	// Cache hit: the insert never reaches Postgres.
	redisMock.ExpectExists("claim:" + key.String()).SetVal(1)

	log := New(db, cache, logger.NewNoOpLogger())
	granted, err := log.Claim(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, granted)

	assert.NoError(t, redisMock.ExpectationsWereMet())
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestClaim_CacheMissFallsThrough(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rdb, redisMock := redismock.NewClientMock()
	cache := NewClaimCache(rdb, time.Hour)
	key := testKey()

	redisMock.ExpectExists("claim:" + key.String()).SetVal(0)
	dbMock.ExpectExec(`INSERT INTO delivery_log`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	redisMock.ExpectSet("claim:"+key.String(), "1", time.Hour).SetVal("OK")

	log := New(db, cache, logger.NewNoOpLogger())
	granted, err := log.Claim(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, granted)

	assert.NoError(t, redisMock.ExpectationsWereMet())
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestRelease_EvictsCache(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rdb, redisMock := redismock.NewClientMock()
	cache := NewClaimCache(rdb, time.Hour)
	key := testKey()

	redisMock.ExpectDel("claim:" + key.String()).SetVal(1)
	dbMock.ExpectExec(`DELETE FROM delivery_log`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	log := New(db, cache, logger.NewNoOpLogger())
	require.NoError(t, log.Release(context.Background(), key))

	assert.NoError(t, redisMock.ExpectationsWereMet())
	assert.NoError(t, dbMock.ExpectationsWereMet())
}
