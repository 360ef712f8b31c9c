package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
	run   int64
	seq   atomic.Int64
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type Scenario struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
		run:   time.Now().UnixNano() % 100000,
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
			defer db.Close()
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
		defer r.redis.Close()
	}

	scenarios := r.scenarios()
	results := make([]Result, 0, len(scenarios))
	for _, sc := range scenarios {
		start := time.Now()
		res := sc.Run(ctx, r)
		res.Name = sc.Name
		if res.Latency == 0 {
			res.Latency = time.Since(start)
		}
		results = append(results, res)
		fmt.Printf("%-5s %s (%s)", res.Status, sc.Name, res.Latency.Round(time.Millisecond))
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}
	return results
}

// phone returns a number unique to this run so repeated runs never collide on users.
func (r *Runner) phone() string {
	return fmt.Sprintf("+92%05d%05d", r.run, r.seq.Add(1)%100000)
}

func pass(note string, args ...any) Result { return Result{Status: statusPass, Note: fmt.Sprintf(note, args...)} }
func fail(note string, args ...any) Result { return Result{Status: statusFail, Note: fmt.Sprintf(note, args...)} }

func (r *Runner) call(ctx context.Context, method, path string, body any) (int, map[string]any, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out, nil
}

// expect runs one call and fails unless it answers want.
func (r *Runner) expect(ctx context.Context, method, path string, body any, want int) (map[string]any, error) {
	code, out, err := r.call(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if code != want {
		return out, fmt.Errorf("%s %s: status=%d want %d (%v)", method, path, code, want, out["error"])
	}
	return out, nil
}

func (r *Runner) newRide(ctx context.Context) (string, error) {
	out, err := r.expect(ctx, http.MethodPost, "/api/rides", map[string]any{
		"passenger_phone": r.phone(), "passenger_name": "Sim Passenger",
		"pickup": "Liberty Market", "destination": "Emporium Mall", "price_offer": 600,
	}, http.StatusCreated)
	if err != nil {
		return "", err
	}
	return out["ride_id"].(string), nil
}

func (r *Runner) newOffer(ctx context.Context, rideID string, price int) (string, error) {
	out, err := r.expect(ctx, http.MethodPost, "/api/rides/"+rideID+"/offers", map[string]any{
		"driver_phone": r.phone(), "driver_name": "Sim Driver", "price": price, "eta_minutes": 5,
	}, http.StatusCreated)
	if err != nil {
		return "", err
	}
	return out["offer_id"].(string), nil
}

func (r *Runner) rideStatus(ctx context.Context, rideID string) (string, error) {
	out, err := r.expect(ctx, http.MethodGet, "/api/rides/"+rideID, nil, http.StatusOK)
	if err != nil {
		return "", err
	}
	s, _ := out["status"].(string)
	return s, nil
}

func (r *Runner) scenarios() []Scenario {
	return []Scenario{
		{Name: "Env: API health", Run: func(ctx context.Context, r *Runner) Result {
			code, _, err := r.call(ctx, http.MethodGet, "/health", nil)
			if err != nil || code != http.StatusOK {
				return fail("status=%d err=%v", code, err)
			}
			return pass("")
		}},
		{Name: "Env: Postgres tables", Run: func(ctx context.Context, r *Runner) Result {
			if r.db == nil {
				return Result{Status: statusSkip, Note: "no dsn"}
			}
			tables, err := extractTables(r.cfg.MigrationPath)
			if err != nil {
				return fail("%v", err)
			}
			for _, t := range tables {
				var exists bool
				if err := r.db.QueryRow(ctx,
					"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)", t,
				).Scan(&exists); err != nil {
					return fail("%v", err)
				}
				if !exists {
					return fail("missing table: %s", t)
				}
			}
			return pass("%d tables", len(tables))
		}},
		{Name: "Env: Redis ping", Run: func(ctx context.Context, r *Runner) Result {
			if r.redis == nil {
				return Result{Status: statusSkip, Note: "no redis"}
			}
			if err := r.redis.Ping(ctx).Err(); err != nil {
				return fail("%v", err)
			}
			return pass("")
		}},
		{Name: "Scenario: create, offer, accept", Run: scenarioAccept},
		{Name: "Scenario: sibling offers rejected", Run: scenarioSiblings},
		{Name: "Scenario: complete from pending refused", Run: scenarioCompletePending},
		{Name: "Scenario: full lifecycle and idempotent calls", Run: scenarioLifecycle},
		{Name: "Scenario: concurrent accept has one winner", Run: scenarioConcurrentAccept},
		{Name: "Load: location updates", Run: loadLocation},
	}
}

func scenarioAccept(ctx context.Context, r *Runner) Result {
	rideID, err := r.newRide(ctx)
	if err != nil {
		return fail("%v", err)
	}
	offerID, err := r.newOffer(ctx, rideID, 550)
	if err != nil {
		return fail("%v", err)
	}
	out, err := r.expect(ctx, http.MethodPost, "/api/offers/"+offerID+"/accept", nil, http.StatusOK)
	if err != nil {
		return fail("%v", err)
	}
	if out["final_price"] != float64(550) {
		return fail("final_price=%v", out["final_price"])
	}
	return pass("ride=%s", rideID)
}

func scenarioSiblings(ctx context.Context, r *Runner) Result {
	rideID, err := r.newRide(ctx)
	if err != nil {
		return fail("%v", err)
	}
	var offers []string
	for _, price := range []int{500, 520, 540} {
		id, err := r.newOffer(ctx, rideID, price)
		if err != nil {
			return fail("%v", err)
		}
		offers = append(offers, id)
	}
	if _, err := r.expect(ctx, http.MethodPost, "/api/offers/"+offers[1]+"/accept", nil, http.StatusOK); err != nil {
		return fail("%v", err)
	}
	if _, err := r.expect(ctx, http.MethodPost, "/api/offers/"+offers[0]+"/accept", nil, http.StatusConflict); err != nil {
		return fail("second accept: %v", err)
	}
	out, err := r.expect(ctx, http.MethodGet, "/api/rides/"+rideID+"/offers", nil, http.StatusOK)
	if err != nil {
		return fail("%v", err)
	}
	counts := map[string]int{}
	for _, o := range out["offers"].([]any) {
		counts[o.(map[string]any)["status"].(string)]++
	}
	if counts["accepted"] != 1 || counts["rejected"] != 2 {
		return fail("offer statuses %v", counts)
	}
	return pass("%v", counts)
}

func scenarioCompletePending(ctx context.Context, r *Runner) Result {
	rideID, err := r.newRide(ctx)
	if err != nil {
		return fail("%v", err)
	}
	if _, err := r.expect(ctx, http.MethodPost, "/api/rides/"+rideID+"/complete", nil, http.StatusConflict); err != nil {
		return fail("%v", err)
	}
	if s, err := r.rideStatus(ctx, rideID); err != nil || s != "pending" {
		return fail("status=%s err=%v", s, err)
	}
	return pass("")
}

func scenarioLifecycle(ctx context.Context, r *Runner) Result {
	rideID, err := r.newRide(ctx)
	if err != nil {
		return fail("%v", err)
	}
	offerID, err := r.newOffer(ctx, rideID, 580)
	if err != nil {
		return fail("%v", err)
	}
	steps := []struct{ path, want string }{
		{"/api/offers/" + offerID + "/accept", "accepted"},
		{"/api/rides/" + rideID + "/enroute", "en_route"},
		{"/api/rides/" + rideID + "/arrive", "arrived"},
		{"/api/rides/" + rideID + "/start", "in_progress"},
	}
	for _, s := range steps {
		if _, err := r.expect(ctx, http.MethodPost, s.path, nil, http.StatusOK); err != nil {
			return fail("%v", err)
		}
	}
	// Safety call fires once; the repeat is a no-op.
	for i, want := range []bool{true, false} {
		out, err := r.expect(ctx, http.MethodPost, "/api/rides/"+rideID+"/calls/safety", nil, http.StatusOK)
		if err != nil {
			return fail("%v", err)
		}
		if out["dispatched"] != want {
			return fail("safety call %d dispatched=%v", i+1, out["dispatched"])
		}
	}
	if _, err := r.expect(ctx, http.MethodPost, "/api/rides/"+rideID+"/complete", nil, http.StatusOK); err != nil {
		return fail("%v", err)
	}
	out, err := r.expect(ctx, http.MethodGet, "/api/rides/"+rideID, nil, http.StatusOK)
	if err != nil {
		return fail("%v", err)
	}
	if out["status"] != "completed" || out["driver_id"] == nil || out["final_price"] != float64(580) {
		return fail("ride=%v", out)
	}
	return pass("ride=%s", rideID)
}

func scenarioConcurrentAccept(ctx context.Context, r *Runner) Result {
	rideID, err := r.newRide(ctx)
	if err != nil {
		return fail("%v", err)
	}
	offers := make([]string, 0, r.cfg.Concurrency)
	for i := 0; i < r.cfg.Concurrency; i++ {
		id, err := r.newOffer(ctx, rideID, 500+i*10)
		if err != nil {
			return fail("%v", err)
		}
		offers = append(offers, id)
	}

	start := make(chan struct{})
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		success  int
		conflict int
	)
	for _, id := range offers {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			<-start
			code, _, err := r.call(ctx, http.MethodPost, "/api/offers/"+id+"/accept", nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
			case code == http.StatusOK:
				success++
			case code == http.StatusConflict:
				conflict++
			}
		}(id)
	}
	close(start)
	wg.Wait()

	if success != 1 || conflict != len(offers)-1 {
		return fail("success=%d conflict=%d", success, conflict)
	}
	return pass("offers=%d", len(offers))
}

func loadLocation(ctx context.Context, r *Runner) Result {
	phone := r.phone()
	if _, err := r.expect(ctx, http.MethodPost, "/api/drivers/online", map[string]any{
		"driver_phone": phone, "driver_name": "Sim Load", "online": true,
	}, http.StatusOK); err != nil {
		return fail("%v", err)
	}
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			lat := 31.52
			for n := 0; time.Now().Before(end) && ctx.Err() == nil; n++ {
				code, _, err := r.call(ctx, http.MethodPut, "/api/drivers/location", map[string]any{
					"driver_phone": phone, "lat": lat + float64(n%100)*0.0001, "lng": 74.35 + float64(i)*0.0001,
				})
				if err != nil || code != http.StatusOK {
					errCount.Add(1)
					continue
				}
				count.Add(1)
			}
		}(i)
	}
	wg.Wait()
	if count.Load() == 0 {
		return fail("no requests completed")
	}
	rps := float64(count.Load()) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Latency: r.cfg.Duration, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount.Load())}
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}
