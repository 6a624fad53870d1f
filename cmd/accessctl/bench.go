package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goAccess "github.com/MrEthical07/goAccess"
	"github.com/MrEthical07/goAccess/encryption"
	"github.com/MrEthical07/goAccess/store/memory"
	"github.com/MrEthical07/goAccess/store/redisstore"
)

const benchPassword = "bench-password-1"

type benchOptions struct {
	accounts    int
	concurrency int
	ops         int
	backend     string
	redisAddr   string
	argonMemory uint
	argonTime   uint
}

func runBench(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	var opts benchOptions
	fs.IntVar(&opts.accounts, "accounts", 1000, "number of user accounts to seed")
	fs.IntVar(&opts.concurrency, "concurrency", 32, "number of concurrent workers")
	fs.IntVar(&opts.ops, "ops", 20000, "operations per phase")
	fs.StringVar(&opts.backend, "backend", driverMemory, "store backend: memory or redis")
	fs.StringVar(&opts.redisAddr, "redis-addr", "", "redis address; miniredis is used when empty")
	fs.UintVar(&opts.argonMemory, "argon-memory", 8192, "argon2id memory in KB for seeded hashes")
	fs.UintVar(&opts.argonTime, "argon-time", 1, "argon2id iterations for seeded hashes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if opts.accounts <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
		fmt.Fprintln(fs.Output(), "accounts, concurrency, and ops must be > 0")
		return errUsage
	}

	store, cleanup, err := a.benchStore(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := goAccess.DefaultConfig()
	cfg.Password.Memory = uint32(opts.argonMemory)
	cfg.Password.Time = uint32(opts.argonTime)
	cfg.Lockout.Threshold = 1 << 20
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	key, err := encryption.GenerateKey()
	if err != nil {
		return err
	}
	keyring, err := encryption.ParseKeyring("1:" + key)
	if err != nil {
		return err
	}

	engine, err := goAccess.New().
		WithConfig(cfg).
		WithStore(store).
		WithEncrypter(keyring).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	emails := make([]string, opts.accounts)
	fmt.Fprintf(a.stdout, "seeding %d accounts...\n", opts.accounts)
	startSeed := time.Now()
	for i := range emails {
		emails[i] = fmt.Sprintf("bench-%d@example.com", i)
		_, err := engine.CreateUser(ctx, goAccess.NewUser{
			Email:       emails[i],
			Password:    benchPassword,
			Permissions: []string{"reports.view"},
		})
		if err != nil {
			return fmt.Errorf("seed %s: %w", emails[i], err)
		}
	}
	fmt.Fprintf(a.stdout, "seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	authStats := runPhase(opts.ops, opts.concurrency, func(r *rand.Rand) error {
		_, err := engine.Authenticate(ctx, goAccess.AuthenticateRequest{
			Kind:     goAccess.KindUser,
			Email:    emails[r.Intn(len(emails))],
			Password: benchPassword,
		})
		return err
	})

	failStats := runPhase(opts.ops, opts.concurrency, func(r *rand.Rand) error {
		_, err := engine.Authenticate(ctx, goAccess.AuthenticateRequest{
			Kind:     goAccess.KindUser,
			Email:    emails[r.Intn(len(emails))],
			Password: "wrong-password",
		})
		if errors.Is(err, goAccess.ErrInvalidCredentials) {
			return nil
		}
		return err
	})

	fmt.Fprintln(a.stdout, "---- results ----")
	printStats(a.stdout, "authenticate", authStats)
	printStats(a.stdout, "failed-login", failStats)

	snap := engine.MetricsSnapshot()
	fmt.Fprintf(a.stdout, "conflicts retried: %d\n", snap.Counters[goAccess.MetricStoreConflict])
	return nil
}

func (a *app) benchStore(opts benchOptions) (goAccess.Store, func(), error) {
	switch opts.backend {
	case driverMemory:
		return memory.NewStore(), func() {}, nil
	case driverRedis:
	default:
		return nil, nil, fmt.Errorf("unsupported bench backend %q", opts.backend)
	}

	addr := opts.redisAddr
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		fmt.Fprintf(a.stdout, "using miniredis at %s\n", mr.Addr())
		return redisstore.New(client, "bench"), func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	fmt.Fprintf(a.stdout, "using redis at %s\n", addr)
	return redisstore.New(client, "bench"), func() { _ = client.Close() }, nil
}

// runPhase executes op ops times across concurrency workers and records each latency.
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

func printStats(w io.Writer, name string, s phaseStats) {
	fmt.Fprintf(w, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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
