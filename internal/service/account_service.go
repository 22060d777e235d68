package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dbreno/mugiwaradb/internal/models"
	"github.com/dbreno/mugiwaradb/internal/store"
	"github.com/dbreno/mugiwaradb/internal/util"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials covers unknown email and wrong password alike, so a
// login probe cannot tell which one it hit.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AccountStore is the storage surface the account directory needs.
type AccountStore interface {
	CreateCustomer(ctx context.Context, customer *models.Customer) error
	GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error)
	GetStaffByEmail(ctx context.Context, email string) (*models.Staff, error)
}

// Identity is the resolved caller: who they are, their role, and whether any
// eligibility flag grants them a discount. The core trusts this triple and
// performs no further credential checks.
type Identity struct {
	ID               int64  `json:"id"`
	Role             string `json:"role"`
	DiscountEligible bool   `json:"discount_eligible"`
}

// AccountService is the account directory: registration, login and token
// resolution for customers and staff.
type AccountService struct {
	accounts  AccountStore
	jwtSecret []byte
	tokenTTL  time.Duration
	logger    *zap.Logger
}

// NewAccountService creates a new account service
func NewAccountService(accounts AccountStore, jwtSecret string, tokenTTL time.Duration) *AccountService {
	return &AccountService{
		accounts:  accounts,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		logger:    util.GetLogger(),
	}
}

// RegisterRequest carries a new customer's data.
type RegisterRequest struct {
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6"`
	Street      string `json:"street"`
	Number      string `json:"number"`
	Complement  string `json:"complement"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postal_code"`
	Phone       string `json:"phone"`
	FlamengoFan bool   `json:"flamengo_fan"`
	OnePieceFan bool   `json:"one_piece_fan"`
	SousaNative bool   `json:"sousa_native"`
}

// Register creates a customer account. A duplicate email surfaces as
// store.ErrEmailTaken.
func (s *AccountService) Register(ctx context.Context, req *RegisterRequest) (*models.Customer, error) {
	ctx, span := util.StartSpan(ctx, "AccountService.Register")
	defer span.End()

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	customer := &models.Customer{
		Name:         req.Name,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		Street:       req.Street,
		Number:       req.Number,
		Complement:   req.Complement,
		City:         req.City,
		State:        req.State,
		PostalCode:   req.PostalCode,
		Phone:        req.Phone,
		FlamengoFan:  req.FlamengoFan,
		OnePieceFan:  req.OnePieceFan,
		SousaNative:  req.SousaNative,
	}

	if err := s.accounts.CreateCustomer(ctx, customer); err != nil {
		return nil, err
	}

	util.CustomersRegisteredTotal.Inc()
	s.logger.Info("Customer registered",
		zap.Int64("customer_id", customer.ID),
		zap.String("email", customer.Email))

	return customer, nil
}

// Login authenticates a staff or customer account and issues a signed token.
// Staff accounts are checked first, matching how the store front desk logs in
// with the same form as shoppers.
func (s *AccountService) Login(ctx context.Context, email, password string) (string, *Identity, error) {
	ctx, span := util.StartSpan(ctx, "AccountService.Login")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))

	if staff, err := s.accounts.GetStaffByEmail(ctx, email); err == nil {
		if bcrypt.CompareHashAndPassword([]byte(staff.PasswordHash), []byte(password)) != nil {
			util.LoginAttemptsTotal.WithLabelValues("failure").Inc()
			return "", nil, ErrInvalidCredentials
		}
		identity := &Identity{ID: staff.ID, Role: models.RoleStaff}
		token, err := s.issueToken(identity)
		util.LoginAttemptsTotal.WithLabelValues("success").Inc()
		return token, identity, err
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", nil, err
	}

	customer, err := s.accounts.GetCustomerByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		util.LoginAttemptsTotal.WithLabelValues("failure").Inc()
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(customer.PasswordHash), []byte(password)) != nil {
		util.LoginAttemptsTotal.WithLabelValues("failure").Inc()
		return "", nil, ErrInvalidCredentials
	}
	util.LoginAttemptsTotal.WithLabelValues("success").Inc()

	identity := &Identity{
		ID:               customer.ID,
		Role:             models.RoleCustomer,
		DiscountEligible: customer.DiscountEligible(),
	}
	token, err := s.issueToken(identity)
	return token, identity, err
}

type tokenClaims struct {
	Role             string `json:"role"`
	DiscountEligible bool   `json:"discount_eligible"`
	jwt.RegisteredClaims
}

func (s *AccountService) issueToken(identity *Identity) (string, error) {
	claims := tokenClaims{
		Role:             identity.Role,
		DiscountEligible: identity.DiscountEligible,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", identity.ID),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ResolveToken validates a token and returns the identity triple it carries.
func (s *AccountService) ResolveToken(tokenString string) (*Identity, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidCredentials
	}

	var id int64
	if _, err := fmt.Sscanf(claims.Subject, "%d", &id); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &Identity{
		ID:               id,
		Role:             claims.Role,
		DiscountEligible: claims.DiscountEligible,
	}, nil
}
