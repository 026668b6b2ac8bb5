package directory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subtrack-notifier/internal/common/logger"
	"subtrack-notifier/internal/models"
)

// fakeStore is an in-memory directory for resolver tests.
type fakeStore struct {
	users       []models.User
	employees   []models.Employee
	departments []models.Department
	failAll     bool
}

var errStore = errors.New("store unavailable")

func (f *fakeStore) ListAdmins(_ context.Context, tenantID string) ([]models.User, error) {
	if f.failAll {
		return nil, errStore
	}
	var out []models.User
	for _, u := range f.users {
		if u.TenantID == tenantID && u.IsAdmin {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeStore) FindUserByEmail(_ context.Context, tenantID, email string) (*models.User, error) {
	if f.failAll {
		return nil, errStore
	}
	for _, u := range f.users {
		if u.TenantID == tenantID && strings.EqualFold(u.Email, email) {
			user := u
			return &user, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindUserByName(_ context.Context, tenantID, name string) (*models.User, error) {
	if f.failAll {
		return nil, errStore
	}
	for _, u := range f.users {
		if u.TenantID == tenantID && strings.EqualFold(u.Name, name) {
			user := u
			return &user, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindEmployee(_ context.Context, tenantID, nameOrEmail string) (*models.Employee, error) {
	if f.failAll {
		return nil, errStore
	}
	for _, e := range f.employees {
		if e.TenantID == tenantID &&
			(strings.EqualFold(e.Name, nameOrEmail) || strings.EqualFold(e.Email, nameOrEmail)) {
			emp := e
			return &emp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetDepartment(_ context.Context, tenantID, name string) (*models.Department, error) {
	if f.failAll {
		return nil, errStore
	}
	for _, d := range f.departments {
		if d.TenantID == tenantID && strings.EqualFold(d.Name, name) {
			dept := d
			return &dept, nil
		}
	}
	return nil, nil
}

func newTestStore() *fakeStore {
	return &fakeStore{
		users: []models.User{
			{ID: "u-1", TenantID: "t1", Email: "alice@acme.test", Name: "Alice Smith", IsAdmin: true},
			{ID: "u-2", TenantID: "t1", Email: "bob@acme.test", Name: "Bob Jones"},
			{ID: "u-3", TenantID: "t1", Email: "", Name: "No Mail Admin", IsAdmin: true},
		},
		employees: []models.Employee{
			{ID: "e-1", TenantID: "t1", Name: "Carol White", Email: "carol@acme.test", Department: "Finance"},
			{ID: "e-2", TenantID: "t1", Name: "Broken Record", Email: "not-an-email"},
		},
		departments: []models.Department{
			{ID: "d-1", TenantID: "t1", Name: "Finance", Head: "Carol White"},
			{ID: "d-2", TenantID: "t1", Name: "IT", Head: ""},
		},
	}
}

func newResolver(store Store) *Resolver {
	return NewResolver(store, logger.NewNoOpLogger())
}

func TestResolve_EmailShapePassthrough(t *testing.T) {
	r := newResolver(newTestStore())

	id := r.ResolveDeliveryIdentity(context.Background(), "t1", "someone@external.test", "")
	require.NotNil(t, id)
	assert.Empty(t, id.ID)
	assert.Equal(t, "someone@external.test", id.Email)
}

// A raw email that matches a login user picks up the identity id.
func TestResolve_EmailMatchesUser(t *testing.T) {
	r := newResolver(newTestStore())

	id := r.ResolveDeliveryIdentity(context.Background(), "t1", "BOB@acme.test", "")
	require.NotNil(t, id)
	assert.Equal(t, "u-2", id.ID)
	assert.Equal(t, "BOB@acme.test", id.Email)
	assert.Equal(t, "Bob Jones", id.Name)
}

func TestResolve_EmployeeByName(t *testing.T) {
	r := newResolver(newTestStore())

	id := r.ResolveDeliveryIdentity(context.Background(), "t1", "carol white", "")
	require.NotNil(t, id)
	assert.Equal(t, "carol@acme.test", id.Email)
	assert.Equal(t, "Carol White", id.Name)
}

func TestResolve_UserByDisplayName(t *testing.T) {
	r := newResolver(newTestStore())

	id := r.ResolveDeliveryIdentity(context.Background(), "t1", "Bob Jones", "")
	require.NotNil(t, id)
	assert.Equal(t, "u-2", id.ID)
	assert.Equal(t, "bob@acme.test", id.Email)
}

// The explicit delivery email wins over the directory answer; the mismatch is
// logged but resolution succeeds.
func TestResolve_ExplicitEmailPreferred(t *testing.T) {
	r := newResolver(newTestStore())

	id := r.ResolveDeliveryIdentity(context.Background(), "t1", "Bob Jones", "bob.new@acme.test")
	require.NotNil(t, id)
	assert.Equal(t, "u-2", id.ID)
	assert.Equal(t, "bob.new@acme.test", id.Email)
}

func TestResolve_ExplicitEmailOnly(t *testing.T) {
	r := newResolver(newTestStore())

	id := r.ResolveDeliveryIdentity(context.Background(), "t1", "", "lone@acme.test")
	require.NotNil(t, id)
	assert.Empty(t, id.ID)
	assert.Equal(t, "lone@acme.test", id.Email)
}

func TestResolve_None(t *testing.T) {
	r := newResolver(newTestStore())

	assert.Nil(t, r.ResolveDeliveryIdentity(context.Background(), "t1", "", ""))
	assert.Nil(t, r.ResolveDeliveryIdentity(context.Background(), "t1", "Unknown Person", ""))
	// Employee exists but has no valid email.
	assert.Nil(t, r.ResolveDeliveryIdentity(context.Background(), "t1", "Broken Record", ""))
	// Invalid explicit email does not rescue an unknown name.
	assert.Nil(t, r.ResolveDeliveryIdentity(context.Background(), "t1", "Unknown Person", "nope"))
}

// Store errors degrade to absence, never propagate.
func TestResolve_StoreFailureDegrades(t *testing.T) {
	r := newResolver(&fakeStore{failAll: true})

	assert.Nil(t, r.ResolveDeliveryIdentity(context.Background(), "t1", "Carol White", ""))
	assert.Empty(t, r.ResolveAdmins(context.Background(), "t1"))
	assert.Nil(t, r.ResolveDepartmentHead(context.Background(), "t1", "Finance"))

	// An email-shape value still resolves without the store.
	id := r.ResolveDeliveryIdentity(context.Background(), "t1", "x@y.test", "")
	require.NotNil(t, id)
	assert.Equal(t, "x@y.test", id.Email)
}

func TestResolveDepartmentHead(t *testing.T) {
	r := newResolver(newTestStore())

	id := r.ResolveDepartmentHead(context.Background(), "t1", "Finance")
	require.NotNil(t, id)
	assert.Equal(t, "carol@acme.test", id.Email)

	// Department with no head configured.
	assert.Nil(t, r.ResolveDepartmentHead(context.Background(), "t1", "IT"))
	// Unknown department.
	assert.Nil(t, r.ResolveDepartmentHead(context.Background(), "t1", "Legal"))
}

func TestResolveAdmins_SkipsInvalidEmails(t *testing.T) {
	r := newResolver(newTestStore())

	admins := r.ResolveAdmins(context.Background(), "t1")
	require.Len(t, admins, 1)
	assert.Equal(t, "u-1", admins[0].ID)
	assert.Equal(t, "alice@acme.test", admins[0].Email)
}
