package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newHSManager(t *testing.T, clock *fakeClock) *Manager {
	t.Helper()
	cfg := Config{
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "authkit",
	}
	if clock != nil {
		cfg.Now = clock.Now
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestIssueAndParseAccess(t *testing.T) {
	m := newHSManager(t, nil)

	token, err := m.Issue(Claims{AccountID: "alice", Email: "alice@x.com", Role: "user"}, KindAccess, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.AccountID != "alice" || claims.Email != "alice@x.com" || claims.Kind != KindAccess {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ID == "" {
		t.Fatal("expected jti to be set")
	}
	if err := claims.Require(KindAccess); err != nil {
		t.Fatalf("require access: %v", err)
	}
	if err := claims.Require(KindRefresh); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("expected ErrKindMismatch, got %v", err)
	}
}

func TestIssueSameSecondTokensDiffer(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := newHSManager(t, clock)

	first, err := m.Issue(Claims{AccountID: "alice"}, KindReset, 15*time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	second, err := m.Issue(Claims{AccountID: "alice"}, KindReset, 15*time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if first == second {
		t.Fatal("expected tokens issued in the same second to differ")
	}
}

func TestIssueRequiredClaims(t *testing.T) {
	m := newHSManager(t, nil)

	if _, err := m.Issue(Claims{Role: "user"}, KindAccess, time.Minute); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected missing id to fail, got %v", err)
	}
	if _, err := m.Issue(Claims{AccountID: "alice"}, KindAccess, time.Minute); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected access token without role to fail, got %v", err)
	}
	if _, err := m.Issue(Claims{AccountID: "alice"}, Kind("session"), time.Minute); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected unknown kind to fail, got %v", err)
	}
	if _, err := m.Issue(Claims{AccountID: "alice"}, KindRefresh, 0); err == nil {
		t.Fatal("expected zero ttl to fail")
	}
}

func TestParseExpired(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newHSManager(t, clock)

	token, err := m.Issue(Claims{AccountID: "alice"}, KindRefresh, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	clock.now = clock.now.Add(2 * time.Minute)
	if _, err := m.Parse(token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestParseTampered(t *testing.T) {
	m := newHSManager(t, nil)

	token, err := m.Issue(Claims{AccountID: "alice", Role: "user"}, KindAccess, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	parts := strings.Split(token, ".")
	forged, err := m.Issue(Claims{AccountID: "mallory", Role: "super-admin"}, KindAccess, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	forgedParts := strings.Split(forged, ".")
	spliced := parts[0] + "." + forgedParts[1] + "." + parts[2]

	if _, err := m.Parse(spliced); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}

	other, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: []byte("another-secret-another-secret-00"), Issuer: "authkit"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := other.Parse(token); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected foreign key to fail signature, got %v", err)
	}
}

func TestParseSignatureCheckedBeforeExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newHSManager(t, clock)

	token, err := m.Issue(Claims{AccountID: "alice"}, KindRefresh, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	clock.now = clock.now.Add(time.Hour)

	other, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: []byte("another-secret-another-secret-00"), Issuer: "authkit", Now: clock.Now})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := other.Parse(token); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected signature failure before expiry, got %v", err)
	}
}

func TestParseMalformed(t *testing.T) {
	m := newHSManager(t, nil)

	for _, input := range []string{"", "not.a.jwt", "abc"} {
		if _, err := m.Parse(input); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Parse(%q): expected ErrMalformed, got %v", input, err)
		}
	}
}

func TestParseRejectsMissingRequiredClaims(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	m := newHSManager(t, nil)

	claims := Claims{
		AccountID: "alice",
		Kind:      KindAccess,
		RegisteredClaims: gjwt.RegisteredClaims{
			Issuer:    "authkit",
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	signed, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, &claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Parse(signed); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected access token without role to be malformed, got %v", err)
	}

	claims.Kind = "bogus"
	signed, err = gjwt.NewWithClaims(gjwt.SigningMethodHS256, &claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Parse(signed); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected unknown kind to be malformed, got %v", err)
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if m.CanSign() {
		t.Fatal("expected verify-only manager")
	}

	claims := Claims{AccountID: "alice", Kind: KindRefresh, RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, &claims).SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Parse(token); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected wrong algorithm to be rejected, got %v", err)
	}
}

func TestParseIssuerAudienceAndLeeway(t *testing.T) {
	_, priv := newEdKeys(t)
	m, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     priv.Public().(ed25519.PublicKey),
		Issuer:        "authkit",
		Audience:      "api",
		Leeway:        30 * time.Second,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, err := m.Issue(Claims{AccountID: "u", Role: "user"}, KindAccess, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Parse(token); err != nil {
		t.Fatalf("expected valid token to parse: %v", err)
	}

	sign := func(c Claims) string {
		t.Helper()
		s, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, &c).SignedString(priv)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}
	base := func(iss, aud string, exp time.Time) Claims {
		return Claims{AccountID: "u", Kind: KindRefresh, RegisteredClaims: gjwt.RegisteredClaims{
			Issuer:    iss,
			Audience:  gjwt.ClaimStrings{aud},
			ExpiresAt: gjwt.NewNumericDate(exp),
			IssuedAt:  gjwt.NewNumericDate(exp.Add(-time.Minute)),
		}}
	}

	if _, err := m.Parse(sign(base("other", "api", time.Now().Add(time.Minute)))); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected wrong issuer to fail, got %v", err)
	}
	if _, err := m.Parse(sign(base("authkit", "other-api", time.Now().Add(time.Minute)))); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected wrong audience to fail, got %v", err)
	}
	if _, err := m.Parse(sign(base("authkit", "api", time.Now().Add(-15*time.Second)))); err != nil {
		t.Fatalf("expected token within leeway to pass: %v", err)
	}
	if _, err := m.Parse(sign(base("authkit", "api", time.Now().Add(-2*time.Minute)))); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestParseKeyIDs(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, _ := newEdKeys(t)
	m, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv1,
		PublicKey:     pub1,
		KeyID:         "k1",
		VerifyKeys:    map[string][]byte{"k1": pub1},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	good, err := m.Issue(Claims{AccountID: "u"}, KindRefresh, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Parse(good); err != nil {
		t.Fatalf("expected known kid token to pass: %v", err)
	}

	claims := Claims{AccountID: "u", Kind: KindRefresh, RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, &claims)
	tok.Header["kid"] = "k2"
	unknown, err := tok.SignedString(priv1)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Parse(unknown); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected unknown kid failure, got %v", err)
	}

	m2, err := NewManager(Config{SigningMethod: MethodEd25519, PublicKey: pub2, VerifyKeys: map[string][]byte{"k2": pub2}})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := m2.Parse(good); err == nil {
		t.Fatal("expected parse failure with mismatched key set")
	}
}

func TestNewManagerRequiresKey(t *testing.T) {
	if _, err := NewManager(Config{SigningMethod: MethodHS256}); err == nil {
		t.Fatal("expected missing hs256 secret to fail")
	}
	if _, err := NewManager(Config{SigningMethod: MethodEd25519}); err == nil {
		t.Fatal("expected missing ed25519 keys to fail")
	}
	if _, err := NewManager(Config{SigningMethod: "rs256", PrivateKey: []byte("x")}); err == nil {
		t.Fatal("expected unsupported method to fail")
	}
}

func FuzzParse(f *testing.F) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		f.Fatal(err)
	}
	mgr, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "fuzz-test",
		Leeway:        30 * time.Second,
		RequireIAT:    true,
		KeyID:         "k1",
		VerifyKeys:    map[string][]byte{"k1": pub},
	})
	if err != nil {
		f.Fatal(err)
	}

	valid, err := mgr.Issue(Claims{AccountID: "uid1", Role: "admin"}, KindAccess, 5*time.Minute)
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("not.a.jwt")
	f.Add("eyJhbGciOiJub25lIn0.eyJpZCI6InRlc3QifQ.")

	f.Fuzz(func(t *testing.T, input string) {
		claims, err := mgr.Parse(input)
		if err != nil {
			return
		}
		if claims == nil {
			t.Fatal("Parse returned nil claims without error")
		}
	})
}
