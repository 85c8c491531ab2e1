package compare

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/lox/daylightmatch/internal/search"
	"github.com/lox/daylightmatch/internal/sunapi"
)

var today = time.Date(2026, time.October, 18, 0, 0, 0, 0, time.UTC)

// apiServer answers with the day length registered for each date and 500 for
// anything else. It records every requested date.
type apiServer struct {
	mu      sync.Mutex
	lengths map[string]string
	dates   []string
}

func (a *apiServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	a.mu.Lock()
	a.dates = append(a.dates, date)
	l, ok := a.lengths[date]
	a.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	fmt.Fprintf(w, `{"results":{"sunrise":"6:00:00 AM","sunset":"5:00:00 PM","day_length":%q},"status":"OK"}`, l)
}

func (a *apiServer) requests(date string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, d := range a.dates {
		if d == date {
			n++
		}
	}
	return n
}

func daysAgo(n int) string {
	return today.AddDate(0, 0, -n).Format("2006-01-02")
}

func newRunner(t *testing.T, api *apiServer, uploader Uploader) (*Runner, *test.Hook) {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	logger, hook := test.NewNullLogger()
	cfg := sunapi.DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.RetryBase = time.Millisecond
	client := sunapi.New(cfg, logger)
	searcher := search.New(client, search.DefaultWindow(), search.DefaultPolicy(), logger)
	return New(searcher, uploader, logger), hook
}

func options(dir string) Options {
	return Options{
		Place:  "Boston",
		Today:  today,
		Window: search.DefaultWindow(),
		Output: filepath.Join(dir, "index.html"),
	}
}

func TestRun_EndToEnd(t *testing.T) {
	api := &apiServer{lengths: map[string]string{
		daysAgo(0):  "10:15:00",
		daysAgo(90): "10:20:40",
		daysAgo(91): "10:14:35",
		daysAgo(92): "10:15:00",
	}}
	r, _ := newRunner(t, api, nil)
	dir := t.TempDir()

	if err := r.Run(context.Background(), options(dir)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "index.html"))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	body := string(b)
	if !strings.Contains(body, "July 19, 2026") {
		t.Error("report does not name the 91-days-ago match")
	}
	if !strings.Contains(body, "10:14:35") {
		t.Error("report missing match day length")
	}
	if api.requests(daysAgo(92)) != 0 {
		t.Error("search continued past the early exit")
	}
	if api.requests(daysAgo(0)) != 1 || api.requests(daysAgo(90)) != 1 {
		t.Error("expected exactly one request for today and for 90 days ago")
	}
}

func TestRun_TodayFailsWritesNothing(t *testing.T) {
	api := &apiServer{lengths: map[string]string{daysAgo(90): "10:00:00"}}
	r, hook := newRunner(t, api, nil)
	dir := t.TempDir()
	path := filepath.Join(dir, "index.html")
	if err := os.WriteFile(path, []byte("previous report"), 0644); err != nil {
		t.Fatal(err)
	}

	err := r.Run(context.Background(), options(dir))
	if !errors.Is(err, search.ErrTodayUnavailable) {
		t.Fatalf("error = %v, want ErrTodayUnavailable", err)
	}
	var fetchErr *sunapi.FetchError
	if !errors.As(err, &fetchErr) {
		t.Errorf("error %v does not carry a FetchError", err)
	}

	// Initial attempt plus three retries.
	if n := api.requests(daysAgo(0)); n != 4 {
		t.Errorf("requests for today = %d, want 4", n)
	}
	if n := api.requests(daysAgo(90)); n != 0 {
		t.Errorf("historical requests = %d, want 0", n)
	}

	b, _ := os.ReadFile(path)
	if string(b) != "previous report" {
		t.Error("report was modified after today's fetch failed")
	}
	if _, err := os.Stat(filepath.Join(dir, "styles.css")); !os.IsNotExist(err) {
		t.Error("stylesheet written after today's fetch failed")
	}

	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.ErrorLevel {
		t.Fatalf("expected an error log, got %+v", entry)
	}
	if entry.Data["date"] != "2026-10-18" {
		t.Errorf("date field = %v", entry.Data["date"])
	}
}

func TestRun_AllHistoricalFail(t *testing.T) {
	api := &apiServer{lengths: map[string]string{daysAgo(0): "10:15:00"}}
	r, _ := newRunner(t, api, nil)
	dir := t.TempDir()

	if err := r.Run(context.Background(), options(dir)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "index.html"))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(b), "No Match Found") {
		t.Error("expected a no-match report")
	}
	if n := api.requests(daysAgo(270)); n != 4 {
		t.Errorf("requests for 270 days ago = %d, want 4", n)
	}
}

func TestRun_WriteFailureIsNotFatal(t *testing.T) {
	api := &apiServer{lengths: map[string]string{daysAgo(0): "10:15:00", daysAgo(90): "10:15:00"}}
	r, hook := newRunner(t, api, nil)
	opts := options(filepath.Join(t.TempDir(), "missing"))

	if err := r.Run(context.Background(), opts); err != nil {
		t.Fatalf("Run: %v", err)
	}
	found := false
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && e.Message == "Failed to write HTML report" {
			found = true
		}
	}
	if !found {
		t.Error("expected report write failure to be logged")
	}
}

type recordingUploader struct {
	paths []string
	err   error
}

func (u *recordingUploader) Upload(ctx context.Context, paths ...string) error {
	u.paths = append(u.paths, paths...)
	return u.err
}

func TestRun_ExtrasAndPublish(t *testing.T) {
	api := &apiServer{lengths: map[string]string{daysAgo(0): "10:15:00", daysAgo(90): "10:15:00"}}
	up := &recordingUploader{}
	r, _ := newRunner(t, api, up)
	dir := t.TempDir()

	var printed bytes.Buffer
	opts := options(dir)
	opts.OGImage = filepath.Join(dir, "og.png")
	opts.MetricsFile = filepath.Join(dir, "daylightmatch.prom")
	opts.Print = &printed

	if err := r.Run(context.Background(), opts); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(opts.OGImage); err != nil {
		t.Errorf("preview image not written: %v", err)
	}
	b, _ := os.ReadFile(opts.Output)
	if !strings.Contains(string(b), "og.png") {
		t.Error("report does not reference the preview image")
	}

	prom, err := os.ReadFile(opts.MetricsFile)
	if err != nil {
		t.Fatalf("metrics not written: %v", err)
	}
	if !strings.Contains(string(prom), "daylightmatch_candidates_examined 1") {
		t.Errorf("metrics missing candidates gauge:\n%s", prom)
	}

	if !strings.Contains(printed.String(), "Daylight Comparison for Boston") {
		t.Errorf("printed text = %q", printed.String())
	}

	want := map[string]bool{"og.png": true, "index.html": true, "styles.css": true}
	if len(up.paths) != len(want) {
		t.Fatalf("uploaded %v", up.paths)
	}
	for _, p := range up.paths {
		if !want[filepath.Base(p)] {
			t.Errorf("unexpected upload %s", p)
		}
	}
}

func TestRun_PublishFailureIsNotFatal(t *testing.T) {
	api := &apiServer{lengths: map[string]string{daysAgo(0): "10:15:00", daysAgo(90): "10:15:00"}}
	up := &recordingUploader{err: errors.New("ftp down")}
	r, _ := newRunner(t, api, up)

	if err := r.Run(context.Background(), options(t.TempDir())); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRelativeTo(t *testing.T) {
	tests := []struct {
		report, target, want string
	}{
		{"out/index.html", "out/og.png", "og.png"},
		{"out/index.html", "out/img/og.png", "img/og.png"},
		{"index.html", "og.png", "og.png"},
	}
	for _, tt := range tests {
		if got := relativeTo(tt.report, tt.target); got != tt.want {
			t.Errorf("relativeTo(%q, %q) = %q, want %q", tt.report, tt.target, got, tt.want)
		}
	}
}
