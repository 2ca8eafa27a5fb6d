package data_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stake-plus/hermes/src/config"
	"github.com/stake-plus/hermes/src/data"
	"gorm.io/gorm"
)

func sqliteConfig(t *testing.T) config.Database {
	return config.Database{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "conn.db")}
}

// gatedDialer holds the dial open until every caller has arrived, then a
// little longer so they all reach the in-flight attempt.
func gatedDialer(arrived *int32, callers int32, dials *int32, result func(ctx context.Context, driver, dsn string) (*gorm.DB, error)) data.DialFunc {
	return func(ctx context.Context, driver, dsn string) (*gorm.DB, error) {
		atomic.AddInt32(dials, 1)
		deadline := time.Now().Add(2 * time.Second)
		for atomic.LoadInt32(arrived) < callers && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		time.Sleep(50 * time.Millisecond)
		return result(ctx, driver, dsn)
	}
}

func runConcurrently(n int, arrived *int32, fn func(i int)) {
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			atomic.AddInt32(arrived, 1)
			fn(i)
		}(i)
	}
	close(start)
	wg.Wait()
}

func TestEnsureConnectedDialsOnceForConcurrentCallers(t *testing.T) {
	const callers = 16
	var arrived, dials int32
	conn := data.NewConnManager(sqliteConfig(t), nil,
		data.WithDialer(gatedDialer(&arrived, callers, &dials, data.Dial)))
	defer conn.Close()

	handles := make([]*gorm.DB, callers)
	errs := make([]error, callers)
	runConcurrently(callers, &arrived, func(i int) {
		handles[i], errs[i] = conn.EnsureConnected(context.Background())
	})

	if got := atomic.LoadInt32(&dials); got != 1 {
		t.Fatalf("dials = %d, want 1", got)
	}
	for i := range handles {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if handles[i] == nil || handles[i] != handles[0] {
			t.Fatalf("caller %d got a different handle", i)
		}
	}
	if conn.Current() != handles[0] {
		t.Fatal("Current does not return the shared handle")
	}

	// Connected: no further dials.
	if _, err := conn.EnsureConnected(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&dials); got != 1 {
		t.Fatalf("dials after reconnect = %d, want 1", got)
	}
}

func TestEnsureConnectedSharesFailureAndRetries(t *testing.T) {
	const callers = 8
	var arrived, dials int32
	boom := errors.New("connection refused")
	conn := data.NewConnManager(sqliteConfig(t), nil,
		data.WithDialer(gatedDialer(&arrived, callers, &dials, func(context.Context, string, string) (*gorm.DB, error) {
			return nil, boom
		})))

	errs := make([]error, callers)
	runConcurrently(callers, &arrived, func(i int) {
		_, errs[i] = conn.EnsureConnected(context.Background())
	})

	if got := atomic.LoadInt32(&dials); got != 1 {
		t.Fatalf("dials = %d, want 1", got)
	}
	for i, err := range errs {
		if !errors.Is(err, data.ErrConnect) {
			t.Fatalf("caller %d: err = %v, want ErrConnect", i, err)
		}
	}
	if conn.Current() != nil {
		t.Fatal("handle must stay unset after a failed dial")
	}

	// The in-flight marker was cleared, so the next call dials again.
	if _, err := conn.EnsureConnected(context.Background()); !errors.Is(err, data.ErrConnect) {
		t.Fatalf("retry err = %v", err)
	}
	if got := atomic.LoadInt32(&dials); got != 2 {
		t.Fatalf("dials after retry = %d, want 2", got)
	}
}

func TestEnsureConnectedWithoutDSNIsDegraded(t *testing.T) {
	var dials int32
	conn := data.NewConnManager(config.Database{Driver: "mysql", MySQLDSN: "your_mysql_dsn"}, nil,
		data.WithDialer(func(context.Context, string, string) (*gorm.DB, error) {
			atomic.AddInt32(&dials, 1)
			return nil, errors.New("should not dial")
		}))

	db, err := conn.EnsureConnected(context.Background())
	if err != nil || db != nil {
		t.Fatalf("got (%v, %v), want (nil, nil)", db, err)
	}
	if dials != 0 {
		t.Fatalf("dialed %d times with a placeholder DSN", dials)
	}
	if conn.Configured() {
		t.Fatal("placeholder DSN reported as configured")
	}
}

func TestEnsureConnectedCallerCancellation(t *testing.T) {
	release := make(chan struct{})
	conn := data.NewConnManager(sqliteConfig(t), nil,
		data.WithDialer(func(ctx context.Context, driver, dsn string) (*gorm.DB, error) {
			<-release
			return data.Dial(ctx, driver, dsn)
		}))
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := conn.EnsureConnected(ctx); !errors.Is(err, context.DeadlineExceeded) || !errors.Is(err, data.ErrConnect) {
		t.Fatalf("err = %v, want deadline exceeded wrapped in ErrConnect", err)
	}

	// The shared attempt keeps going and lands for later callers.
	close(release)
	db, err := conn.EnsureConnected(context.Background())
	if err != nil || db == nil {
		t.Fatalf("got (%v, %v)", db, err)
	}
}

func TestCloseResets(t *testing.T) {
	conn := data.NewConnManager(sqliteConfig(t), nil)
	if _, err := conn.EnsureConnected(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := conn.Close(); err != nil {
		t.Fatal(err)
	}
	if conn.Current() != nil {
		t.Fatal("Close left a handle behind")
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if db, err := conn.EnsureConnected(context.Background()); err != nil || db == nil {
		t.Fatalf("reconnect after Close: (%v, %v)", db, err)
	}
	conn.Close()
}

func TestCloseDiscardsDialInFlight(t *testing.T) {
	dialing := make(chan struct{})
	release := make(chan struct{})
	var dials int32
	conn := data.NewConnManager(sqliteConfig(t), nil,
		data.WithDialer(func(ctx context.Context, driver, dsn string) (*gorm.DB, error) {
			if atomic.AddInt32(&dials, 1) == 1 {
				close(dialing)
				<-release
			}
			return data.Dial(ctx, driver, dsn)
		}))

	done := make(chan error, 1)
	go func() {
		_, err := conn.EnsureConnected(context.Background())
		done <- err
	}()
	<-dialing
	if err := conn.Close(); err != nil {
		t.Fatal(err)
	}
	close(release)

	if err := <-done; !errors.Is(err, data.ErrConnect) {
		t.Fatalf("err = %v, want ErrConnect", err)
	}
	if conn.Current() != nil {
		t.Fatal("dial that landed after Close left a handle behind")
	}

	db, err := conn.EnsureConnected(context.Background())
	if err != nil || db == nil {
		t.Fatalf("reconnect after Close: (%v, %v)", db, err)
	}
	conn.Close()
}
