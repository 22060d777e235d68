package service

import (
	"context"
	"testing"
	"time"

	"github.com/dbreno/mugiwaradb/internal/models"
	"github.com/dbreno/mugiwaradb/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memAccounts struct {
	customers map[string]*models.Customer
	staff     map[string]*models.Staff
	nextID    int64
}

func newMemAccounts() *memAccounts {
	return &memAccounts{
		customers: make(map[string]*models.Customer),
		staff:     make(map[string]*models.Staff),
	}
}

func (m *memAccounts) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	if _, exists := m.customers[customer.Email]; exists {
		return store.ErrEmailTaken
	}
	m.nextID++
	customer.ID = m.nextID
	customer.CreatedAt = time.Now()
	m.customers[customer.Email] = customer
	return nil
}

func (m *memAccounts) GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	customer, ok := m.customers[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	return customer, nil
}

func (m *memAccounts) GetStaffByEmail(ctx context.Context, email string) (*models.Staff, error) {
	staff, ok := m.staff[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	return staff, nil
}

func (m *memAccounts) addStaff(email, password string) *models.Staff {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	m.nextID++
	staff := &models.Staff{
		ID:           m.nextID,
		Name:         "Nami",
		Email:        email,
		PasswordHash: string(hash),
		Position:     "navigator",
	}
	m.staff[email] = staff
	return staff
}

func newTestAccounts() (*AccountService, *memAccounts) {
	accounts := newMemAccounts()
	return NewAccountService(accounts, "test-secret", time.Hour), accounts
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestAccounts()
	ctx := context.Background()

	customer, err := svc.Register(ctx, &RegisterRequest{
		Name:        "Monkey D. Luffy",
		Email:       "Luffy@Mugiwara.com",
		Password:    "meusonhoeh",
		City:        "Sousa",
		FlamengoFan: true,
	})
	require.NoError(t, err)
	assert.NotZero(t, customer.ID)
	assert.Equal(t, "luffy@mugiwara.com", customer.Email)
	assert.NotEqual(t, "meusonhoeh", customer.PasswordHash)

	token, identity, err := svc.Login(ctx, "luffy@mugiwara.com", "meusonhoeh")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, customer.ID, identity.ID)
	assert.Equal(t, models.RoleCustomer, identity.Role)
	assert.True(t, identity.DiscountEligible)

	_, _, err = svc.Login(ctx, "luffy@mugiwara.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody@mugiwara.com", "meusonhoeh")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestAccounts()
	ctx := context.Background()

	req := &RegisterRequest{Name: "Luffy", Email: "luffy@mugiwara.com", Password: "meusonhoeh"}
	_, err := svc.Register(ctx, req)
	require.NoError(t, err)

	_, err = svc.Register(ctx, req)
	assert.ErrorIs(t, err, store.ErrEmailTaken)
}

func TestLoginStaffTakesPrecedence(t *testing.T) {
	svc, accounts := newTestAccounts()
	ctx := context.Background()

	staff := accounts.addStaff("nami@mugiwara.com", "berries")

	token, identity, err := svc.Login(ctx, "nami@mugiwara.com", "berries")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, staff.ID, identity.ID)
	assert.Equal(t, models.RoleStaff, identity.Role)
	assert.False(t, identity.DiscountEligible)
}

func TestResolveTokenRoundTrip(t *testing.T) {
	svc, _ := newTestAccounts()
	ctx := context.Background()

	customer, err := svc.Register(ctx, &RegisterRequest{
		Name:        "Zoro",
		Email:       "zoro@mugiwara.com",
		Password:    "santoryu",
		OnePieceFan: true,
	})
	require.NoError(t, err)

	token, _, err := svc.Login(ctx, "zoro@mugiwara.com", "santoryu")
	require.NoError(t, err)

	identity, err := svc.ResolveToken(token)
	require.NoError(t, err)
	assert.Equal(t, customer.ID, identity.ID)
	assert.Equal(t, models.RoleCustomer, identity.Role)
	assert.True(t, identity.DiscountEligible)
}

func TestResolveTokenRejectsBadTokens(t *testing.T) {
	svc, _ := newTestAccounts()

	_, err := svc.ResolveToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// A token signed with another secret must not resolve.
	other := NewAccountService(newMemAccounts(), "other-secret", time.Hour)
	token, err := other.issueToken(&Identity{ID: 1, Role: models.RoleCustomer})
	require.NoError(t, err)

	_, err = svc.ResolveToken(token)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResolveTokenRejectsExpired(t *testing.T) {
	accounts := newMemAccounts()
	svc := NewAccountService(accounts, "test-secret", -time.Minute)

	token, err := svc.issueToken(&Identity{ID: 1, Role: models.RoleCustomer})
	require.NoError(t, err)

	_, err = svc.ResolveToken(token)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
