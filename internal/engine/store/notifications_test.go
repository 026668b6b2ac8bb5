package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subtrack-notifier/internal/models"
)

func TestNotificationStore_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO in_app_notifications`).
		WithArgs("n-1", "t1", "u-1", "carol@acme.test", "lic-1", "license", "reminder", "dept_head,owner2", "License \"DPL\" is due on 2025-03-08", false, created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewNotificationStore(db).Insert(context.Background(), &models.InAppNotification{
		ID:             "n-1",
		TenantID:       "t1",
		RecipientID:    "u-1",
		RecipientEmail: "carol@acme.test",
		EntityID:       "lic-1",
		EntityType:     models.EntityLicense,
		Event:          models.EventReminder,
		Roles:          []models.Role{models.RoleDeptHead, models.RoleOwner2},
		Message:        `License "DPL" is due on 2025-03-08`,
		Read:           false,
		CreatedAt:      created,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationStore_InsertEmailFallbackRecipient(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	// No identity id resolved: recipient_id is stored as NULL, not "".
	mock.ExpectExec(`INSERT INTO in_app_notifications`).
		WithArgs("n-2", "t1", nil, "ops@acme.test", "sub-1", "subscription", "created", "owner", "Subscription \"Figma\" was created", false, created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewNotificationStore(db).Insert(context.Background(), &models.InAppNotification{
		ID:             "n-2",
		TenantID:       "t1",
		RecipientEmail: "ops@acme.test",
		EntityID:       "sub-1",
		EntityType:     models.EntitySubscription,
		Event:          models.EventCreated,
		Roles:          []models.Role{models.RoleOwner},
		Message:        `Subscription "Figma" was created`,
		CreatedAt:      created,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
