package authkit

import (
	"context"
	"errors"
	"testing"

	"github.com/santokhan/authkit/permission"
)

func TestRegister(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	account, err := env.engine.Register(ctx, RegisterRequest{
		Name:     "Carol",
		Email:    " Carol@X.com ",
		Password: "Passw0rd",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if account.ID == "" || account.Role != permission.RoleUser || account.Verified {
		t.Fatalf("unexpected account %+v", account)
	}
	if account.Email != "carol@x.com" {
		t.Fatalf("expected normalized email, got %q", account.Email)
	}
	if account.PasswordHash != "" {
		t.Fatal("hash must not be returned to the caller")
	}
	if stored := env.repo.get(account.ID); stored.PasswordHash == "" || stored.PasswordHash == "Passw0rd" {
		t.Fatal("expected a stored hash, never the raw password")
	}

	env.login(t, "carol@x.com", "Passw0rd")

	_, err = env.engine.Register(ctx, RegisterRequest{Email: "carol@x.com", Password: "Passw0rd"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if HTTPStatus(err) != 409 {
		t.Fatalf("expected 409, got %d", HTTPStatus(err))
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	cases := []struct {
		name string
		req  RegisterRequest
		want error
	}{
		{"no contact", RegisterRequest{Password: "Passw0rd"}, ErrInvalidRequest},
		{"bad email", RegisterRequest{Email: "not-an-email", Password: "Passw0rd"}, ErrInvalidRequest},
		{"bad phone", RegisterRequest{Phone: "555-1234", Password: "Passw0rd"}, ErrInvalidRequest},
		{"short username", RegisterRequest{Email: "d@x.com", Username: "ab", Password: "Passw0rd"}, ErrInvalidRequest},
		{"no password", RegisterRequest{Email: "d@x.com"}, ErrInvalidRequest},
		{"weak password", RegisterRequest{Email: "d@x.com", Password: "abcdef"}, ErrPasswordPolicy},
		{"short password", RegisterRequest{Email: "d@x.com", Password: "ab1"}, ErrPasswordPolicy},
	}
	for _, tc := range cases {
		if _, err := env.engine.Register(ctx, tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	if _, err := env.engine.Register(ctx, RegisterRequest{Phone: "+15550003333", Username: "dave99", Password: "abc123"}); err != nil {
		t.Fatalf("phone-only registration failed: %v", err)
	}
}

type roleFixture struct {
	env        *testEnv
	user       string
	admin      string
	superAdmin string
}

func newRoleFixture(t *testing.T) roleFixture {
	t.Helper()
	env := newTestEnv(t, nil)
	env.seedAlice(t)
	env.seed(t, Account{ID: "10", Email: "admin@x.com", Role: permission.RoleAdmin}, "Adm1nPass")
	env.seed(t, Account{ID: "20", Email: "root@x.com", Role: permission.RoleSuperAdmin}, "R00tPass")

	return roleFixture{
		env:        env,
		user:       env.login(t, "alice@x.com", "Passw0rd").AccessToken,
		admin:      env.login(t, "admin@x.com", "Adm1nPass").AccessToken,
		superAdmin: env.login(t, "root@x.com", "R00tPass").AccessToken,
	}
}

func TestListAccountsRoleGate(t *testing.T) {
	f := newRoleFixture(t)
	ctx := context.Background()

	if _, err := f.env.engine.ListAccounts(ctx, f.user, ListOptions{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for a user, got %v", err)
	}
	for _, tok := range []string{f.admin, f.superAdmin} {
		page, err := f.env.engine.ListAccounts(ctx, tok, ListOptions{})
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if page.Total != 3 || page.Limit != defaultListLimit || len(page.Accounts) != 3 {
			t.Fatalf("unexpected page %+v", page)
		}
		for _, a := range page.Accounts {
			if a.PasswordHash != "" {
				t.Fatal("listed accounts must not carry hashes")
			}
		}
	}

	if _, err := f.env.engine.ListAccounts(ctx, f.admin, ListOptions{SortBy: "password"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for bad sort, got %v", err)
	}
	if _, err := f.env.engine.ListAccounts(ctx, f.admin, ListOptions{Order: 2}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for bad order, got %v", err)
	}
	if _, err := f.env.engine.ListAccounts(ctx, "junk", ListOptions{}); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestNormalizeListOptions(t *testing.T) {
	opts, err := normalizeListOptions(ListOptions{Limit: 500})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.SortBy != SortCreatedAt || opts.Order != -1 || opts.Limit != maxListLimit {
		t.Fatalf("unexpected defaults %+v", opts)
	}
	if _, err := normalizeListOptions(ListOptions{Skip: -1}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestGetAccount(t *testing.T) {
	f := newRoleFixture(t)
	ctx := context.Background()

	self, err := f.env.engine.GetAccount(ctx, f.user, "1")
	if err != nil || self.Email != "alice@x.com" {
		t.Fatalf("expected own record, got %+v %v", self, err)
	}
	if _, err := f.env.engine.GetAccount(ctx, f.user, "10"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden reading another account, got %v", err)
	}
	if _, err := f.env.engine.GetAccount(ctx, f.admin, "1"); err != nil {
		t.Fatalf("admin read failed: %v", err)
	}
	if _, err := f.env.engine.GetAccount(ctx, f.admin, "404"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateRole(t *testing.T) {
	f := newRoleFixture(t)
	ctx := context.Background()

	if err := f.env.engine.UpdateRole(ctx, f.admin, "1", permission.RoleAdmin); !errors.Is(err, ErrForbidden) {
		t.Fatalf("admins cannot change roles, got %v", err)
	}
	if err := f.env.engine.UpdateRole(ctx, f.superAdmin, "1", "owner"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for unknown role, got %v", err)
	}
	if err := f.env.engine.UpdateRole(ctx, f.superAdmin, "1", permission.RoleAdmin); err != nil {
		t.Fatalf("update role failed: %v", err)
	}
	if f.env.repo.get("1").Role != permission.RoleAdmin {
		t.Fatal("expected role to be persisted")
	}
	if got := f.env.engine.MetricsSnapshot().Counters[MetricAccessDenied]; got != 1 {
		t.Fatalf("expected one denied access, got %d", got)
	}
}

func TestDeleteAccount(t *testing.T) {
	f := newRoleFixture(t)
	ctx := context.Background()

	if err := f.env.engine.DeleteAccount(ctx, f.user, "10"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for a user, got %v", err)
	}
	if err := f.env.engine.DeleteAccount(ctx, f.admin, "20"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("admins cannot delete a super-admin, got %v", err)
	}

	if _, err := f.env.engine.RequestPasswordReset(ctx, ResetRequest{Contact: Contact{Email: "alice@x.com"}}); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	if err := f.env.engine.DeleteAccount(ctx, f.admin, "1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if f.env.mr.Exists("ak:refresh:1") || f.env.mr.Exists("ak:reset:1") {
		t.Fatal("expected token records of the deleted account to be removed")
	}
	if err := f.env.engine.DeleteAccount(ctx, f.admin, "1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if err := f.env.engine.DeleteAccount(ctx, f.superAdmin, "10"); err != nil {
		t.Fatalf("super-admin delete failed: %v", err)
	}
}
