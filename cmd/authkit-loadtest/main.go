// Command authkit-loadtest drives Login, Authenticate and Refresh against an
// engine backed by Redis (or miniredis) and the in-memory account store.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/santokhan/authkit"
	"github.com/santokhan/authkit/password"
	"github.com/santokhan/authkit/permission"
	"github.com/santokhan/authkit/store/memory"
)

const loadPassword = "L0adTestPass"

type account struct {
	email string
	mu    sync.Mutex
	pair  authkit.TokenPair
}

func main() {
	var (
		accounts    = flag.Int("accounts", 2000, "number of accounts to seed and log in")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase (authenticate, refresh)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		rotate      = flag.Bool("rotate", false, "rotate refresh tokens on every refresh")
	)
	flag.Parse()

	if *accounts <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "accounts, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	var mr *miniredis.Miniredis
	if addr == "" {
		var err error
		mr, err = miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		defer mr.Close()
		addr = mr.Addr()
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		fmt.Printf("using redis at %s\n", addr)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer func() { _ = client.Close() }()

	cfg := authkit.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(strings.Repeat("l", 32))
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.UpgradeOnLogin = false
	cfg.RateLimit.MaxLoginAttempts = 0
	cfg.Refresh.RotateOnRefresh = *rotate

	repo := memory.New()
	states, err := seed(repo, cfg, *accounts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}

	engine, err := authkit.New().
		WithConfig(cfg).
		WithRedis(client).
		WithAccountRepository(repo).
		WithDelivery(discardDelivery{}).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	loginStats := runPhase(len(states), *concurrency, func(i int, _ *rand.Rand) error {
		st := &states[i]
		pair, err := engine.Login(ctx, authkit.Credentials{Contact: authkit.Contact{Email: st.email}, Password: loadPassword})
		if err == nil {
			st.pair = pair
		}
		return err
	})

	authStats := runPhase(*ops, *concurrency, func(_ int, r *rand.Rand) error {
		st := &states[r.Intn(len(states))]
		st.mu.Lock()
		token := st.pair.AccessToken
		st.mu.Unlock()
		_, err := engine.Authenticate(ctx, token)
		return err
	})

	refreshStats := runPhase(*ops, *concurrency, func(_ int, r *rand.Rand) error {
		st := &states[r.Intn(len(states))]
		st.mu.Lock()
		defer st.mu.Unlock()
		pair, err := engine.Refresh(ctx, st.pair.RefreshToken)
		if err == nil {
			st.pair = pair
		}
		return err
	})

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("authenticate", authStats)
	printStats("refresh", refreshStats)
}

// seed hashes the shared password once and stores every account with it.
func seed(repo *memory.Repository, cfg authkit.Config, n int) ([]account, error) {
	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	hash, err := hasher.Hash(loadPassword)
	if err != nil {
		return nil, err
	}

	fmt.Printf("seeding %d accounts...\n", n)
	start := time.Now()
	states := make([]account, n)
	now := time.Now().UTC()
	for i := range states {
		email := fmt.Sprintf("load-%d@example.com", i)
		states[i].email = email
		if _, err := repo.Create(context.Background(), authkit.Account{
			ID:           fmt.Sprintf("acc-%d", i),
			Email:        email,
			PasswordHash: hash,
			Role:         permission.RoleUser,
			CreatedAt:    now,
			UpdatedAt:    now,
		}); err != nil {
			return nil, err
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(start).Round(time.Millisecond))
	return states, nil
}

type discardDelivery struct{}

func (discardDelivery) SendResetLink(context.Context, authkit.Recipient, string) error        { return nil }
func (discardDelivery) SendVerificationLink(context.Context, authkit.Recipient, string) error { return nil }

func runPhase(ops, concurrency int, op func(i int, r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(i, r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}
