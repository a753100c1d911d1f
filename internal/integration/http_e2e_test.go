//go:build integration || !unit

package integration

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/rs/zerolog"

	server "hotel_inventory/internal/adapters/http_server"
	redisad "hotel_inventory/internal/adapters/redis"
	"hotel_inventory/internal/app"
	"hotel_inventory/internal/domain"
	mysqlrepo "hotel_inventory/internal/storage/mysql"
)

// ---------- helpers ----------
func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := os.Getenv("MIGRATIONS_DIR")
	if dir == "" {
		dir = filepath.Join("..", "..", "migrations")
	}
	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("migrations dir %s is not a directory or missing", dir)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=hotel",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "hotel")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)
	return db
}

type discard struct{}

func (discard) Emit(...domain.AuditEvent) {}

// instance is one api process: its own engine and Interval Store over the
// shared database, redis locks and redis cache.
func instance(t *testing.T, repo *mysqlrepo.Repo, mr *miniredis.Miniredis) *httptest.Server {
	t.Helper()
	rc := redisad.NewClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = rc.Close() })
	cache := redisad.NewCache(rc)
	locks := redisad.NewLocker(rc, 5*time.Second, 5*time.Second)

	eng := app.NewEngine(repo, locks, discard{}, cache, zerolog.Nop(), app.Config{})
	q := app.NewQueryService(repo, eng, cache, time.Minute)
	srv := server.New()
	srv.MountHandlers(&server.Handlers{E: eng, Q: q})
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)
	return ts
}

func call(t *testing.T, method, url string, body any, hdr map[string]string) (int, map[string]any) {
	t.Helper()
	var rd bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd.Reset(b)
	}
	req, _ := http.NewRequest(method, url, &rd)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer res.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res.StatusCode, out
}

// ---------- the test ----------
func TestHTTP_EndToEnd_TwoInstances(t *testing.T) {
	repo := mysqlrepo.New(startMySQL(t))
	mr := miniredis.RunT(t)
	a, b := instance(t, repo, mr), instance(t, repo, mr)

	code, room := call(t, http.MethodPost, a.URL+"/v1/rooms", map[string]any{
		"number": "501", "building": "C", "floor": 5, "capacity": 2, "type": "double", "nightly_rate": 150,
	}, nil)
	if code != http.StatusCreated {
		t.Fatalf("provision: %d %v", code, room)
	}
	roomID := room["id"].(string)

	in := time.Now().UTC().AddDate(0, 0, 10).Format(time.DateOnly)
	out := time.Now().UTC().AddDate(0, 0, 13).Format(time.DateOnly)
	req := func(guest string) map[string]any {
		return map[string]any{"room_id": roomID, "guest_id": guest, "check_in": in, "check_out": out, "guests": 2}
	}

	// Both instances race for the same stay; the shared lock admits one.
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = map[int]int{}
	)
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ts := a
			if i%2 == 1 {
				ts = b
			}
			c, _ := call(t, http.MethodPost, ts.URL+"/v1/bookings", req(fmt.Sprintf("g-%d", i)), nil)
			mu.Lock()
			codes[c]++
			mu.Unlock()
		}()
	}
	wg.Wait()
	if codes[http.StatusCreated] != 1 || codes[http.StatusConflict] != 7 {
		t.Fatalf("codes = %v", codes)
	}

	// Whichever instance won, b reads the committed status.
	code, got := call(t, http.MethodGet, b.URL+"/v1/rooms/"+roomID, nil, nil)
	if code != http.StatusOK || got["status"] != string(domain.RoomBooked) {
		t.Fatalf("room on b: %d %v", code, got)
	}

	code, list := call(t, http.MethodGet, a.URL+"/v1/bookings?room_id="+roomID+"&status=confirmed", nil, nil)
	items, _ := list["items"].([]any)
	if code != http.StatusOK || len(items) != 1 {
		t.Fatalf("bookings: %d %v", code, list)
	}
	bookingID := items[0].(map[string]any)["id"].(string)

	// Cancel on b, rebook on a with an idempotency key, replay it on b.
	if code, body := call(t, http.MethodPost, b.URL+"/v1/bookings/"+bookingID+"/cancel", map[string]any{"reason": "plans changed"}, nil); code != http.StatusOK {
		t.Fatalf("cancel: %d %v", code, body)
	}
	key := map[string]string{"Idempotency-Key": "e2e-1"}
	code, first := call(t, http.MethodPost, a.URL+"/v1/bookings", req("late"), key)
	if code != http.StatusCreated {
		t.Fatalf("rebook: %d %v", code, first)
	}
	code, replay := call(t, http.MethodPost, b.URL+"/v1/bookings", req("late"), key)
	if code != http.StatusCreated || replay["id"] != first["id"] {
		t.Fatalf("replay: %d %v", code, replay)
	}

	code, problem := call(t, http.MethodPost, b.URL+"/v1/bookings", req("other"), nil)
	if code != http.StatusConflict || problem["reason"] != string(domain.ReasonIntervalConflict) {
		t.Fatalf("overlap: %d %v", code, problem)
	}
}

func TestHTTP_EndToEnd_RoomNotFound(t *testing.T) {
	repo := mysqlrepo.New(startMySQL(t))
	ts := instance(t, repo, miniredis.RunT(t))

	code, problem := call(t, http.MethodGet, ts.URL+"/v1/rooms/missing", nil, nil)
	if code != http.StatusNotFound || problem["reason"] != string(domain.ReasonRoomNotFound) {
		t.Fatalf("got %d %v", code, problem)
	}
}
