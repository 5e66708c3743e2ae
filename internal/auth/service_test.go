package auth

import (
	"context"
	"testing"
	"time"

	"chatwire/internal/config"
	"chatwire/internal/database"
	"chatwire/internal/models"

	"golang.org/x/crypto/bcrypt"
)

// fakeDB implements the slice of database.Database the auth service touches;
// everything else panics if reached.
type fakeDB struct {
	database.Database
	users map[string]*models.User // keyed by email
}

func newFakeDB() *fakeDB {
	return &fakeDB{users: make(map[string]*models.User)}
}

func (f *fakeDB) CreateUser(_ context.Context, req *models.RegisterRequest) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		ID:           "u-" + req.Email,
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
	}
	f.users[req.Email] = u
	clone := *u
	return &clone, nil
}

func (f *fakeDB) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	u, ok := f.users[email]
	if !ok {
		return nil, database.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (f *fakeDB) GetUserByID(_ context.Context, id string) (*models.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			clone := *u
			return &clone, nil
		}
	}
	return nil, database.ErrNotFound
}

func newService(db database.Database, expiresIn time.Duration) *Service {
	return NewService(db, &config.Config{
		JWT: config.JWTConfig{
			Secret:    []byte("test-secret"),
			ExpiresIn: expiresIn,
		},
	})
}

func register(t *testing.T, svc *Service) *models.LoginResponse {
	t.Helper()
	resp, err := svc.Register(context.Background(), &models.RegisterRequest{
		Name:     "Aparna",
		Email:    "aparna@example.com",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return resp
}

func TestRegisterIssuesUsableToken(t *testing.T) {
	svc := newService(newFakeDB(), time.Hour)
	resp := register(t, svc)

	if resp.Token == "" {
		t.Fatal("no token issued")
	}
	claims, err := svc.ValidateToken(resp.Token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got := (*claims)["user_id"]; got != resp.User.ID {
		t.Fatalf("user_id claim = %v, want %s", got, resp.User.ID)
	}

	user, err := svc.GetUserFromToken(context.Background(), resp.Token)
	if err != nil {
		t.Fatalf("resolve token: %v", err)
	}
	if user.Email != "aparna@example.com" {
		t.Fatalf("got %+v", user)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newService(newFakeDB(), time.Hour)
	cases := []struct {
		name string
		req  models.RegisterRequest
	}{
		{"missing fields", models.RegisterRequest{Email: "a@b.co", Password: "long enough"}},
		{"bad email", models.RegisterRequest{Name: "Aparna", Email: "not-an-email", Password: "long enough"}},
		{"short password", models.RegisterRequest{Name: "Aparna", Email: "a@b.co", Password: "short"}},
		{"one-char name", models.RegisterRequest{Name: "A", Email: "a@b.co", Password: "long enough"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Register(context.Background(), &tc.req); err == nil {
				t.Fatal("want validation error")
			}
		})
	}
}

func TestLogin(t *testing.T) {
	svc := newService(newFakeDB(), time.Hour)
	register(t, svc)

	resp, err := svc.Login(context.Background(), &models.LoginRequest{
		Email:    "aparna@example.com",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("no token issued")
	}
	if resp.User.PasswordHash != "" {
		t.Fatal("password hash must be scrubbed from the response")
	}

	if _, err := svc.Login(context.Background(), &models.LoginRequest{
		Email:    "aparna@example.com",
		Password: "wrong",
	}); err == nil {
		t.Fatal("wrong password must not log in")
	}
	if _, err := svc.Login(context.Background(), &models.LoginRequest{
		Email:    "nobody@example.com",
		Password: "correct horse",
	}); err == nil {
		t.Fatal("unknown email must not log in")
	}
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	db := newFakeDB()
	issuer := newService(db, time.Hour)
	resp := register(t, issuer)

	verifier := NewService(db, &config.Config{
		JWT: config.JWTConfig{Secret: []byte("other-secret"), ExpiresIn: time.Hour},
	})
	if _, err := verifier.ValidateToken(resp.Token); err == nil {
		t.Fatal("token signed with a different secret must be rejected")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	svc := newService(newFakeDB(), -time.Hour)
	resp := register(t, svc)

	if _, err := svc.ValidateToken(resp.Token); err == nil {
		t.Fatal("expired token must be rejected")
	}
}
