package authkit

import (
	"context"
	"testing"
)

func BenchmarkAuthenticate(b *testing.B) {
	env := newTestEnv(b, nil)
	env.seedAlice(b)
	pair := env.login(b, "alice@x.com", "Passw0rd")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := env.engine.Authenticate(context.Background(), pair.AccessToken); err != nil {
			b.Fatalf("authenticate failed: %v", err)
		}
	}
}

func BenchmarkRefresh(b *testing.B) {
	env := newTestEnv(b, nil)
	env.seedAlice(b)
	pair := env.login(b, "alice@x.com", "Passw0rd")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := env.engine.Refresh(context.Background(), pair.RefreshToken); err != nil {
			b.Fatalf("refresh failed: %v", err)
		}
	}
}

func BenchmarkRefreshRotating(b *testing.B) {
	env := newTestEnv(b, func(c *Config) { c.Refresh.RotateOnRefresh = true })
	env.seedAlice(b)
	refresh := env.login(b, "alice@x.com", "Passw0rd").RefreshToken

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		next, err := env.engine.Refresh(context.Background(), refresh)
		if err != nil {
			b.Fatalf("refresh failed: %v", err)
		}
		refresh = next.RefreshToken
	}
}

func BenchmarkLogin(b *testing.B) {
	env := newTestEnv(b, func(c *Config) { c.RateLimit.MaxLoginAttempts = 0 })
	env.seedAlice(b)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		env.login(b, "alice@x.com", "Passw0rd")
	}
}
