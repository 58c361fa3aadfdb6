// Command docgate-loadtest drives the admission pipeline and the credit
// decrement concurrently and reports latency percentiles.
//
// Users live in the in-memory store; sessions and counters go to Redis
// (REDIS_ADDR, -redis-addr, or an embedded miniredis).
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
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/docgate"
	"github.com/MrEthical07/docgate/internal/store/memory"
	"github.com/MrEthical07/docgate/jwt"
	"github.com/MrEthical07/docgate/session"
)

type seeded struct {
	userID string
	token  string
}

func main() {
	var (
		users       = flag.Int("users", 2000, "number of users (one session each) to seed")
		credits     = flag.Int("credits", 20, "starting credits per user")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "dgload", "session key prefix")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 || *credits < 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency and ops must be > 0, credits >= 0")
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
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := docgate.DefaultConfig()
	cfg.JWT.Secret = uuid.NewString() + uuid.NewString()
	cfg.Session.KeyPrefix = *prefix
	cfg.Credits.DailyLimit = max(*credits, 1)
	cfg.Audit.Enabled = false

	store := memory.New()
	engine, err := docgate.New().WithConfig(cfg).WithRedis(client).WithStore(store).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("seeding %d users...\n", *users)
	startSeed := time.Now()
	states, err := seed(ctx, engine, store, *users, *credits)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	authStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		_, err := engine.Authenticate(ctx, states[r.Intn(len(states))].token)
		return err
	})

	consumeStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		_, err := engine.ConsumeCredit(ctx, states[r.Intn(len(states))].userID)
		return err
	})

	fmt.Println("---- results ----")
	printStats("authenticate", authStats)
	printStats("consume", consumeStats)

	granted := int64(consumeStats.ops) - consumeStats.failures
	budget := int64(*users) * int64(*credits)
	fmt.Printf("credits granted=%d budget=%d\n", granted, budget)
	if granted > budget {
		fmt.Fprintln(os.Stderr, "credit budget exceeded")
		os.Exit(1)
	}
}

func seed(ctx context.Context, engine *docgate.Engine, store *memory.Store, n, credits int) ([]seeded, error) {
	now := time.Now().UTC()
	out := make([]seeded, n)
	for i := 0; i < n; i++ {
		u := &docgate.User{
			ID:              uuid.NewString(),
			Email:           fmt.Sprintf("load-%d@example.com", i),
			Username:        fmt.Sprintf("load-%d", i),
			PasswordHash:    "unused",
			Role:            docgate.RoleUser,
			Credits:         credits,
			LastCreditReset: now,
			Verified:        true,
			CreatedAt:       now,
		}
		if err := store.CreateUser(ctx, u); err != nil {
			return nil, err
		}
		grant, err := engine.CreateSession(ctx, u, jwt.ClassSession, session.Device{ID: "loadtest"})
		if err != nil {
			return nil, err
		}
		out[i] = seeded{userID: u.ID, token: grant.Token}
	}
	return out, nil
}

func runPhase(ops, concurrency int, op func(r *rand.Rand) error) phaseStats {
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
				if int(atomic.AddInt64(&cursor, 1)) > ops {
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
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
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
