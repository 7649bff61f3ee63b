// Command authgate-loadtest seeds verified accounts into an in-memory
// credential store, then hammers the engine in three phases: login, access
// verification, and refresh rotation. Each phase reports throughput and
// latency percentiles.
//
// With no -redis-addr it runs against an embedded miniredis, which measures
// the engine itself rather than network round trips. Point it at a real
// server to include them:
//
//	go run ./cmd/authgate-loadtest -redis-addr localhost:6379 -users 10000 -ops 50000
//
// Argon2 memory is floored at the configurable minimum so login throughput
// reflects token and session work; raise -argon-memory to measure hashing at
// production cost.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sablehq/authgate"
	"github.com/sablehq/authgate/password"
)

const seedPassword = "loadtest-password-1"

type userState struct {
	id      string
	email   string
	access  string
	refresh string
	mu      sync.Mutex
}

func main() {
	var (
		users       = flag.Int("users", 5000, "number of accounts to seed")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		argonMemory = flag.Uint("argon-memory", 8192, "argon2 memory cost in KB")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var cleanup func()
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		cleanup = mr.Close
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		cleanup = func() {}
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	cfg := authgate.DefaultConfig()
	cfg.JWT.Secret = []byte("authgate-loadtest-secret-0123456789ab")
	cfg.Password.Memory = uint32(*argonMemory)
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	store, states, err := seedAccounts(cfg, *users)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}

	engine, err := authgate.New().
		WithConfig(cfg).
		WithRedis(client).
		WithCredentialStore(store).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	loginStats := runLoginPhase(ctx, engine, states, *ops, *concurrency)
	verifyStats := runVerifyPhase(ctx, engine, states, *ops, *concurrency)
	refreshStats := runRefreshPhase(ctx, engine, states, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("verify", verifyStats)
	printStats("refresh", refreshStats)

	snap := engine.MetricsSnapshot()
	fmt.Printf("engine counters: login_success=%d refresh_success=%d replay_detected=%d\n",
		snap.Counters[authgate.MetricLoginSuccess],
		snap.Counters[authgate.MetricRefreshSuccess],
		snap.Counters[authgate.MetricReplayDetected])
}

// seedAccounts builds the credential store. One hash is computed and shared
// across every account; logins still verify it at full cost.
func seedAccounts(cfg authgate.Config, n int) (*memStore, []*userState, error) {
	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, nil, err
	}
	hash, err := hasher.Hash(seedPassword)
	if err != nil {
		return nil, nil, err
	}

	store := newMemStore()
	states := make([]*userState, n)

	fmt.Printf("seeding %d accounts...\n", n)
	start := time.Now()
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("u-%d", i)
		email := fmt.Sprintf("user%d@load.test", i)
		store.add(authgate.Credential{
			ID:            id,
			Email:         email,
			PasswordHash:  hash,
			Role:          "user",
			Status:        authgate.AccountActive,
			EmailVerified: true,
			CreatedAt:     time.Now(),
		})
		states[i] = &userState{id: id, email: email}
	}
	fmt.Printf("seeded in %s\n", time.Since(start).Round(time.Millisecond))

	return store, states, nil
}

func runLoginPhase(ctx context.Context, engine *authgate.Engine, states []*userState, ops, concurrency int) phaseStats {
	return runPhase(ops, concurrency, func(r *rand.Rand, i int) (time.Duration, bool) {
		state := states[r.Intn(len(states))]

		state.mu.Lock()
		defer state.mu.Unlock()

		t0 := time.Now()
		result, err := engine.Login(ctx, state.email, seedPassword)
		d := time.Since(t0)
		if err != nil {
			return d, false
		}
		state.access = result.AccessToken
		state.refresh = result.RefreshToken
		return d, true
	})
}

func runVerifyPhase(ctx context.Context, engine *authgate.Engine, states []*userState, ops, concurrency int) phaseStats {
	// Tokens are stable during this phase; no per-user locking needed.
	return runPhase(ops, concurrency, func(r *rand.Rand, i int) (time.Duration, bool) {
		token := states[r.Intn(len(states))].access
		if token == "" {
			return 0, false
		}

		t0 := time.Now()
		_, err := engine.VerifyAccess(ctx, token)
		return time.Since(t0), err == nil
	})
}

func runRefreshPhase(ctx context.Context, engine *authgate.Engine, states []*userState, ops, concurrency int) phaseStats {
	return runPhase(ops, concurrency, func(r *rand.Rand, i int) (time.Duration, bool) {
		state := states[r.Intn(len(states))]

		state.mu.Lock()
		defer state.mu.Unlock()

		if state.refresh == "" {
			return 0, false
		}

		t0 := time.Now()
		pair, err := engine.Refresh(ctx, state.refresh)
		d := time.Since(t0)
		if err != nil {
			return d, false
		}
		state.access = pair.AccessToken
		state.refresh = pair.RefreshToken
		return d, true
	})
}

// runPhase fans ops calls of op across concurrency workers and gathers
// per-call latencies.
func runPhase(ops, concurrency int, op func(r *rand.Rand, i int) (time.Duration, bool)) phaseStats {
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
				d, ok := op(r, i)
				if !ok {
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

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

// memStore is a minimal in-memory CredentialStore for load generation.
type memStore struct {
	mu      sync.RWMutex
	byID    map[string]authgate.Credential
	byEmail map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		byID:    make(map[string]authgate.Credential),
		byEmail: make(map[string]string),
	}
}

func (m *memStore) add(cred authgate.Credential) {
	m.byID[cred.ID] = cred
	m.byEmail[cred.Email] = cred.ID
}

func (m *memStore) FindByEmail(_ context.Context, email string) (*authgate.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[email]
	if !ok {
		return nil, authgate.ErrNotFound
	}
	cred := m.byID[id]
	return &cred, nil
}

func (m *memStore) FindByID(_ context.Context, id string) (*authgate.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cred, ok := m.byID[id]
	if !ok {
		return nil, authgate.ErrNotFound
	}
	return &cred, nil
}

func (m *memStore) Create(_ context.Context, cred *authgate.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byEmail[cred.Email]; exists {
		return authgate.ErrAccountExists
	}
	m.add(*cred)
	return nil
}

func (m *memStore) UpdateRefreshToken(_ context.Context, userID, tokenHash string) error {
	return m.update(userID, func(c *authgate.Credential) { c.RefreshToken = tokenHash })
}

func (m *memStore) SetResetToken(_ context.Context, userID, tokenHash string) error {
	return m.update(userID, func(c *authgate.Credential) { c.ResetToken = tokenHash })
}

func (m *memStore) ResetPassword(_ context.Context, userID, passwordHash string) error {
	return m.update(userID, func(c *authgate.Credential) {
		c.PasswordHash = passwordHash
		c.ResetToken = ""
	})
}

func (m *memStore) VerifyEmail(_ context.Context, userID string) error {
	return m.update(userID, func(c *authgate.Credential) {
		c.EmailVerified = true
		c.Status = authgate.AccountActive
	})
}

func (m *memStore) UpdateLastLogin(_ context.Context, userID string, at time.Time) error {
	return m.update(userID, func(c *authgate.Credential) { c.LastLoginAt = at })
}

func (m *memStore) update(userID string, fn func(*authgate.Credential)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, ok := m.byID[userID]
	if !ok {
		return authgate.ErrNotFound
	}
	fn(&cred)
	m.byID[userID] = cred
	return nil
}
