// Command authflow-loadtest measures session checks and logins against a
// Redis-backed store.
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

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/password"
	"github.com/MrEthical07/authflow/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const loadPassword = "load-test-password"

type account struct {
	email string
	token string
}

// nopNotifier drops every email; seeded accounts are already verified.
type nopNotifier struct{}

func (nopNotifier) SendVerificationEmail(context.Context, string, string) error  { return nil }
func (nopNotifier) SendWelcomeEmail(context.Context, string, string) error       { return nil }
func (nopNotifier) SendPasswordResetEmail(context.Context, string, string) error { return nil }
func (nopNotifier) SendResetSuccessEmail(context.Context, string) error          { return nil }

func main() {
	var (
		users       = flag.Int("users", 10000, "number of verified accounts to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase (check-auth + login)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "loadtest", "store key prefix")
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

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	// Minimum cost keeps the phases measuring the store rather than bcrypt.
	hasher, err := password.NewBcrypt(bcrypt.MinCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hasher: %v\n", err)
		os.Exit(1)
	}
	hash, err := hasher.Hash(loadPassword)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash: %v\n", err)
		os.Exit(1)
	}

	cfg := authflow.DefaultConfig()
	cfg.JWT.Secret = []byte("authflow-loadtest-secret-authflow-loadtest")
	cfg.RateLimit.Enabled = false
	cfg.Sweep.Enabled = false
	cfg.Metrics.Enabled = false

	userStore := store.NewRedis(client, *prefix)
	engine, err := authflow.New().
		WithConfig(cfg).
		WithStore(userStore).
		WithNotifier(nopNotifier{}).
		WithHasher(hasher).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	accounts := make([]account, *users)
	fmt.Printf("seeding %d accounts...\n", *users)
	startSeed := time.Now()
	for i := 0; i < *users; i++ {
		email := fmt.Sprintf("user-%d@loadtest.local", i)
		now := time.Now().UTC()
		if err := userStore.CreateUser(ctx, &authflow.User{
			Email:        email,
			Name:         fmt.Sprintf("User %d", i),
			PasswordHash: hash,
			IsVerified:   true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}
		res, err := engine.Login(ctx, authflow.LoginRequest{Email: email, Password: loadPassword})
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed login failed: %v\n", err)
			os.Exit(1)
		}
		accounts[i] = account{email: email, token: res.Token}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	checkStats := runPhase(*ops, *concurrency, 7919, func(r *rand.Rand) error {
		a := accounts[r.Intn(len(accounts))]
		userID, err := engine.ParseSession(a.token)
		if err != nil {
			return err
		}
		_, err = engine.CheckAuth(ctx, userID)
		return err
	})
	loginStats := runPhase(*ops, *concurrency, 6151, func(r *rand.Rand) error {
		a := accounts[r.Intn(len(accounts))]
		_, err := engine.Login(ctx, authflow.LoginRequest{Email: a.email, Password: loadPassword})
		return err
	})

	fmt.Println("---- results ----")
	printStats("check-auth", checkStats)
	printStats("login", loginStats)
}

// runPhase spreads ops calls of op over concurrency workers and records the
// latency of each call.
func runPhase(ops, concurrency, seed int, op func(r *rand.Rand) error) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker*seed)))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r)
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
	total := time.Since(start)
	return computeStats(total, latencies, failures)
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
