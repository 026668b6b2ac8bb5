// internal/engine/notifier/notifier_test.go
package notifier

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "subtrack-notifier/internal/common/errors"
	"subtrack-notifier/internal/common/logger"
	"subtrack-notifier/internal/models"
	"subtrack-notifier/pkg/registry"
)

type fakeGate struct {
	held     map[string]bool
	claimed  []models.DeliveryKey
	released []models.DeliveryKey
	claimErr error
}

func newFakeGate() *fakeGate {
	return &fakeGate{held: make(map[string]bool)}
}

func (g *fakeGate) Claim(ctx context.Context, key models.DeliveryKey) (bool, error) {
	if g.claimErr != nil {
		return false, g.claimErr
	}
	if g.held[key.String()] {
		return false, nil
	}
	g.held[key.String()] = true
	g.claimed = append(g.claimed, key)
	return true, nil
}

func (g *fakeGate) Release(ctx context.Context, key models.DeliveryKey) error {
	delete(g.held, key.String())
	g.released = append(g.released, key)
	return nil
}

type fakeInAppStore struct {
	inserted  []*models.InAppNotification
	insertErr error
}

func (s *fakeInAppStore) Insert(ctx context.Context, n *models.InAppNotification) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, n)
	return nil
}

type sentEmail struct {
	to      string
	subject string
	body    string
}

type fakeTransport struct {
	configured bool
	sent       []sentEmail
	failTo     string // address whose sends fail
}

func (t *fakeTransport) Configured() bool { return t.configured }

func (t *fakeTransport) Send(ctx context.Context, to, subject, htmlBody string) error {
	if t.failTo != "" && to == t.failTo {
		return apperrors.NewTransportFailedError(to, fmt.Errorf("throttled"))
	}
	t.sent = append(t.sent, sentEmail{to: to, subject: subject, body: htmlBody})
	return nil
}

func testEntity() *models.Entity {
	due := time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)
	return &models.Entity{
		ID:         "lic-1",
		TenantID:   "tenant-1",
		Type:       models.EntityLicense,
		Name:       "Data Processing License",
		Status:     models.StatusActive,
		TargetDate: &due,
	}
}

func testRecipient() *models.Recipient {
	return &models.Recipient{
		ID:          "u1",
		Email:       "carol@acme.test",
		Name:        "Carol",
		Roles:       models.NewRoleSet(models.RoleOwner2, models.RoleDeptHead),
		SendInApp:   true,
		SendEmail:   true,
		InAppRoles:  models.NewRoleSet(models.RoleOwner2, models.RoleDeptHead),
		EmailRoles:  models.NewRoleSet(models.RoleOwner2, models.RoleDeptHead),
		Departments: []string{"Legal"},
	}
}

func newTestNotifier(gate ClaimGate, store InAppStore, transport EmailTransport) *Notifier {
	return New(gate, store, transport, registry.Defaults(), nil, logger.NewNoOpLogger())
}

func TestDeliverMergedRecipientOneRecordTwoEmails(t *testing.T) {
	gate := newFakeGate()
	store := &fakeInAppStore{}
	transport := &fakeTransport{configured: true}
	n := newTestNotifier(gate, store, transport)

	result, err := n.Deliver(context.Background(), testEntity(), models.EventReminder, "2025-03-01", testRecipient())
	require.NoError(t, err)

	// One merged in-app record carrying both roles.
	assert.True(t, result.InAppSent)
	require.Len(t, store.inserted, 1)
	assert.Equal(t, []models.Role{models.RoleDeptHead, models.RoleOwner2}, store.inserted[0].Roles)
	assert.Equal(t, "u1", store.inserted[0].RecipientID)

	// One email per role, both to the same address with role-specific wording.
	assert.Equal(t, 2, result.EmailsSent)
	require.Len(t, transport.sent, 2)
	assert.Equal(t, "carol@acme.test", transport.sent[0].to)
	assert.Equal(t, "carol@acme.test", transport.sent[1].to)
	assert.Contains(t, transport.sent[0].body, "department head for Legal")
	assert.Contains(t, transport.sent[1].body, "secondary contact")

	// In-app claim uses the primary role; email claims one key per role.
	require.Len(t, gate.claimed, 3)
	assert.Equal(t, models.RoleDeptHead, gate.claimed[0].Role)
	assert.Equal(t, models.ChannelInApp, gate.claimed[0].Channel)
}

func TestDeliverInAppRecordCarriesAllRoles(t *testing.T) {
	gate := newFakeGate()
	store := &fakeInAppStore{}
	transport := &fakeTransport{configured: true}
	n := newTestNotifier(gate, store, transport)

	// Owner2 qualifies for email only; the merged record still lists it so
	// the feed shows every capacity the person was notified in.
	rec := &models.Recipient{
		ID:         "u1",
		Email:      "carol@acme.test",
		Name:       "Carol",
		Roles:      models.NewRoleSet(models.RoleOwner2, models.RoleDeptHead),
		SendInApp:  true,
		SendEmail:  true,
		InAppRoles: models.NewRoleSet(models.RoleDeptHead),
		EmailRoles: models.NewRoleSet(models.RoleOwner2),
	}

	_, err := n.Deliver(context.Background(), testEntity(), models.EventReminder, "2025-03-01", rec)
	require.NoError(t, err)

	require.Len(t, store.inserted, 1)
	assert.Equal(t, []models.Role{models.RoleDeptHead, models.RoleOwner2}, store.inserted[0].Roles)
}

func TestDeliverIdempotentOnRerun(t *testing.T) {
	gate := newFakeGate()
	store := &fakeInAppStore{}
	transport := &fakeTransport{configured: true}
	n := newTestNotifier(gate, store, transport)

	_, err := n.Deliver(context.Background(), testEntity(), models.EventReminder, "2025-03-01", testRecipient())
	require.NoError(t, err)

	result, err := n.Deliver(context.Background(), testEntity(), models.EventReminder, "2025-03-01", testRecipient())
	require.NoError(t, err)

	assert.False(t, result.InAppSent)
	assert.Equal(t, 0, result.EmailsSent)
	assert.Equal(t, 3, result.Skipped)
	assert.Len(t, store.inserted, 1)
	assert.Len(t, transport.sent, 2)
}

func TestDeliverUnconfiguredTransportSkipsEmailWithoutClaiming(t *testing.T) {
	gate := newFakeGate()
	store := &fakeInAppStore{}
	n := newTestNotifier(gate, store, UnconfiguredTransport{})

	result, err := n.Deliver(context.Background(), testEntity(), models.EventReminder, "2025-03-01", testRecipient())
	require.NoError(t, err)

	// In-app delivery proceeds; email is skipped with no email claims burned,
	// so a later run with a configured transport can still deliver.
	assert.True(t, result.InAppSent)
	assert.Equal(t, 0, result.EmailsSent)
	for _, key := range gate.claimed {
		assert.Equal(t, models.ChannelInApp, key.Channel)
	}
}

func TestDeliverSendFailureReleasesClaim(t *testing.T) {
	gate := newFakeGate()
	store := &fakeInAppStore{}
	transport := &fakeTransport{configured: true, failTo: "carol@acme.test"}
	n := newTestNotifier(gate, store, transport)

	result, err := n.Deliver(context.Background(), testEntity(), models.EventReminder, "2025-03-01", testRecipient())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTransportFailed))

	assert.Equal(t, 2, result.EmailsFailed)
	require.Len(t, gate.released, 2)
	for _, key := range gate.released {
		assert.Equal(t, models.ChannelEmail, key.Channel)
		assert.False(t, gate.held[key.String()])
	}

	// The in-app record still landed; channel failures are independent.
	assert.True(t, result.InAppSent)
}

func TestDeliverInsertFailureReleasesClaim(t *testing.T) {
	gate := newFakeGate()
	store := &fakeInAppStore{insertErr: fmt.Errorf("connection reset")}
	transport := &fakeTransport{configured: true}
	n := newTestNotifier(gate, store, transport)

	result, err := n.Deliver(context.Background(), testEntity(), models.EventReminder, "2025-03-01", testRecipient())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotificationInsert))

	assert.False(t, result.InAppSent)
	require.Len(t, gate.released, 1)
	assert.Equal(t, models.ChannelInApp, gate.released[0].Channel)

	// Emails are still attempted.
	assert.Equal(t, 2, result.EmailsSent)
}

func TestDeliverEmailOnlyRecipient(t *testing.T) {
	gate := newFakeGate()
	store := &fakeInAppStore{}
	transport := &fakeTransport{configured: true}
	n := newTestNotifier(gate, store, transport)

	rec := &models.Recipient{
		Email:      "ops@acme.test",
		Roles:      models.NewRoleSet(models.RoleOwner),
		SendEmail:  true,
		EmailRoles: models.NewRoleSet(models.RoleOwner),
	}
	entity := testEntity()

	result, err := n.Deliver(context.Background(), entity, models.EventReminder, "2025-03-01", rec)
	require.NoError(t, err)

	assert.False(t, result.InAppSent)
	assert.Equal(t, 1, result.EmailsSent)
	assert.Empty(t, store.inserted)

	// Email-fallback recipients are keyed by normalized email.
	require.Len(t, gate.claimed, 1)
	assert.Equal(t, "ops@acme.test", gate.claimed[0].RecipientRef)
}

func TestDeliverTemplateMissingFails(t *testing.T) {
	gate := newFakeGate()
	store := &fakeInAppStore{}
	transport := &fakeTransport{configured: true}
	n := newTestNotifier(gate, store, transport)

	rec := &models.Recipient{
		ID:         "u1",
		Email:      "carol@acme.test",
		Roles:      models.NewRoleSet(models.RoleOwner),
		SendEmail:  true,
		EmailRoles: models.NewRoleSet(models.RoleOwner),
	}
	entity := testEntity()

	// subscription/deleted has no email cell in the matrix, so no template.
	entity.Type = models.EntitySubscription
	_, err := n.Deliver(context.Background(), entity, models.EventDeleted, "evt-1", rec)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTemplateNotFound))
	require.Len(t, gate.released, 1)
}

func TestInAppMessageWording(t *testing.T) {
	entity := testEntity()
	assert.Equal(t, `License "Data Processing License" is due on 2025-03-08`, inAppMessage(entity, models.EventReminder))

	sub := &models.Entity{Type: models.EntitySubscription, Name: "Figma", Amount: 120.5}
	assert.Equal(t, `Subscription "Figma" was created`, inAppMessage(sub, models.EventCreated))
	assert.Equal(t, `Price of Subscription "Figma" changed to 120.50`, inAppMessage(sub, models.EventPriceChanged))
}
