// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package accesslog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/reqaudit/internal/audit"
	"github.com/tomtom215/reqaudit/internal/masking"
)

// blockingWriter holds every write until release is closed.
type blockingWriter struct {
	release chan struct{}
	mu      sync.Mutex
	n       int
}

func (b *blockingWriter) WriteAccess(context.Context, *audit.AccessRecord) error {
	<-b.release
	b.mu.Lock()
	b.n++
	b.mu.Unlock()
	return nil
}

// slowWriter stores records in a MemorySink after a fixed delay.
type slowWriter struct {
	sink  *audit.MemorySink
	delay time.Duration
}

func (s *slowWriter) WriteAccess(ctx context.Context, rec *audit.AccessRecord) error {
	time.Sleep(s.delay)
	return s.sink.WriteAccess(ctx, rec)
}

type countingNotifier struct {
	mu sync.Mutex
	n  int
}

func (c *countingNotifier) Notify(context.Context, error, map[string]any) {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

type failingWriter struct{}

func (failingWriter) WriteAccess(context.Context, *audit.AccessRecord) error {
	return errors.New("store unavailable")
}

// runAdapter starts Serve and returns a stop func that waits for the drain.
func runAdapter(t *testing.T, a *Adapter) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = a.Serve(ctx)
		close(done)
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("adapter did not stop")
		}
	}
}

func sampleEntry() Entry {
	return Entry{
		WorkerPID:    1234,
		ServerAddr:   "0.0.0.0:8000",
		RemoteAddr:   "192.0.2.10",
		RequestLine:  "GET /api/items?token=abc HTTP/1.1",
		StatusCode:   200,
		ResponseSize: 512,
		Referer:      "https://example.com/",
		UserAgent:    "curl/8.0",
		Duration:     25 * time.Millisecond,
		Timestamp:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestAdapter_WritesConvertedRecord(t *testing.T) {
	sink := audit.NewMemorySink()
	opts := DefaultOptions()
	opts.Enricher = EnricherFunc(func(e Entry) (map[string]any, error) {
		return map[string]any{"pool": "web", "secret": "s"}, nil
	})
	a, err := NewAdapter(sink, opts)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	stop := runAdapter(t, a)

	if !a.Capture(sampleEntry()) {
		t.Fatal("Capture dropped the entry")
	}
	stop()

	got, err := sink.QueryAccess(context.Background(), audit.RecordFilter{})
	if err != nil || len(got) != 1 {
		t.Fatalf("QueryAccess = %d records, %v", len(got), err)
	}
	rec := got[0]
	if rec.Method != "GET" || rec.Protocol != "HTTP/1.1" {
		t.Errorf("method=%q protocol=%q", rec.Method, rec.Protocol)
	}
	if rec.URL != "/api/items?token="+masking.MaskToken {
		t.Errorf("url = %q, want masked token", rec.URL)
	}
	if rec.WorkerPID != 1234 || rec.ServerAddr != "0.0.0.0:8000" || rec.ResponseSize != 512 {
		t.Errorf("pid=%d addr=%q size=%d", rec.WorkerPID, rec.ServerAddr, rec.ResponseSize)
	}
	if rec.Extra["pool"] != "web" || rec.Extra["secret"] != masking.MaskToken {
		t.Errorf("extra = %v", rec.Extra)
	}
	if rec.UserID != nil {
		t.Errorf("user id = %q, want nil", *rec.UserID)
	}
}

func TestAdapter_CaptureNeverBlocks(t *testing.T) {
	w := &blockingWriter{release: make(chan struct{})}
	opts := DefaultOptions()
	opts.BufferSize = 2
	a, _ := NewAdapter(w, opts)
	stop := runAdapter(t, a)

	done := make(chan int)
	go func() {
		accepted := 0
		for i := 0; i < 50; i++ {
			if a.Capture(sampleEntry()) {
				accepted++
			}
		}
		done <- accepted
	}()

	select {
	case accepted := <-done:
		// one in flight in the writer plus a full buffer
		if accepted > 3 {
			t.Errorf("accepted %d entries with buffer 2", accepted)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Capture blocked on a full buffer")
	}

	close(w.release)
	stop()
	if a.Pending() != 0 {
		t.Errorf("pending after drain = %d", a.Pending())
	}
}

func TestAdapter_FailuresAreNotified(t *testing.T) {
	n := &countingNotifier{}
	opts := DefaultOptions()
	opts.Notifier = n
	a, _ := NewAdapter(failingWriter{}, opts)
	stop := runAdapter(t, a)

	a.Capture(sampleEntry())
	a.Capture(sampleEntry())
	stop()

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.n != 2 {
		t.Errorf("notifications = %d, want 2", n.n)
	}
}

func TestAdapter_RejectsAfterStop(t *testing.T) {
	a, _ := NewAdapter(audit.NewMemorySink(), DefaultOptions())
	stop := runAdapter(t, a)
	stop()

	if a.Capture(sampleEntry()) {
		t.Error("Capture accepted an entry after stop")
	}
}

func TestHandler_CapturesServerEntry(t *testing.T) {
	sink := audit.NewMemorySink()
	a, _ := NewAdapter(sink, DefaultOptions())
	stop := runAdapter(t, a)

	h := Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("queued"))
	}), a, "127.0.0.1:8000")

	req := httptest.NewRequest(http.MethodPost, "/jobs?x=1", strings.NewReader("{}"))
	req.RemoteAddr = "198.51.100.7:40000"
	req.Header.Set("Referer", "https://app.example/")
	req.SetBasicAuth("bob", "pw")
	h.ServeHTTP(httptest.NewRecorder(), req)
	stop()

	got, _ := sink.QueryAccess(context.Background(), audit.RecordFilter{})
	if len(got) != 1 {
		t.Fatalf("records = %d, want 1", len(got))
	}
	rec := got[0]
	if rec.WorkerPID != os.Getpid() {
		t.Errorf("pid = %d, want %d", rec.WorkerPID, os.Getpid())
	}
	if rec.RemoteAddr != "198.51.100.7" || rec.ServerAddr != "127.0.0.1:8000" {
		t.Errorf("remote=%q server=%q", rec.RemoteAddr, rec.ServerAddr)
	}
	if rec.RequestLine != "POST /jobs?x=1 HTTP/1.1" {
		t.Errorf("request line = %q", rec.RequestLine)
	}
	if rec.StatusCode != http.StatusAccepted || rec.ResponseSize != int64(len("queued")) {
		t.Errorf("status=%d size=%d", rec.StatusCode, rec.ResponseSize)
	}
	if rec.UserID == nil || *rec.UserID != "bob" {
		t.Errorf("user = %v, want bob", rec.UserID)
	}
}

func TestParseLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		line     string
		wantErr  bool
		wantSize int64
		wantDur  time.Duration
		wantUser string
		wantUA   string
	}{
		{
			name:     "full format",
			line:     `10.1.2.3 - alice [10/Oct/2025:13:55:36 -0700] "GET /api/x?page=2 HTTP/1.1" 200 2326 "https://example.com/" "Mozilla/5.0 (X11)" 0.125`,
			wantSize: 2326,
			wantDur:  125 * time.Millisecond,
			wantUser: "alice",
			wantUA:   "Mozilla/5.0 (X11)",
		},
		{
			name: "combined without request time",
			line: `10.1.2.3 - - [10/Oct/2025:13:55:36 +0000] "HEAD / HTTP/1.0" 304 - "-" "-"`,
		},
		{
			name:     "escaped quotes",
			line:     `10.1.2.3 - - [10/Oct/2025:13:55:36 +0000] "GET /q?s=\"x\" HTTP/1.1" 200 5 "-" "agent \"v2\"" 1`,
			wantSize: 5,
			wantDur:  time.Second,
			wantUA:   `agent "v2"`,
		},
		{name: "garbage", line: "not an access line", wantErr: true},
		{name: "bad time", line: `10.1.2.3 - - [yesterday] "GET / HTTP/1.1" 200 1 "-" "-" 0.1`, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, err := ParseLine(tt.line)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedLine) {
					t.Errorf("err = %v, want ErrMalformedLine", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLine: %v", err)
			}
			if e.RemoteAddr != "10.1.2.3" {
				t.Errorf("remote = %q", e.RemoteAddr)
			}
			if e.ResponseSize != tt.wantSize || e.Duration != tt.wantDur {
				t.Errorf("size=%d dur=%v", e.ResponseSize, e.Duration)
			}
			if e.User != tt.wantUser || e.UserAgent != tt.wantUA {
				t.Errorf("user=%q ua=%q", e.User, e.UserAgent)
			}
			if e.Timestamp.IsZero() {
				t.Error("timestamp not parsed")
			}
		})
	}
}

func TestIngestReader(t *testing.T) {
	sink := audit.NewMemorySink()
	a, _ := NewAdapter(sink, DefaultOptions())
	stop := runAdapter(t, a)

	input := strings.Join([]string{
		`10.0.0.1 - - [01/Mar/2026:10:00:00 +0000] "GET /a HTTP/1.1" 200 10 "-" "ua" 0.010`,
		``,
		`broken`,
		`10.0.0.2 - - [01/Mar/2026:10:00:01 +0000] "GET /b HTTP/1.1" 404 0 "-" "ua" 0.002`,
	}, "\n")

	stats, err := IngestReader(context.Background(), strings.NewReader(input), a, 77, "unix:/run/app.sock")
	if err != nil {
		t.Fatalf("IngestReader: %v", err)
	}
	stop()

	if stats.Lines != 3 || stats.Captured != 2 || stats.Malformed != 1 {
		t.Errorf("stats = %+v", stats)
	}
	n, _ := sink.Count(context.Background(), audit.LogTypeAccess, audit.RecordFilter{MinStatus: 400})
	if n != 1 {
		t.Errorf("4xx records = %d, want 1", n)
	}
}

func TestIngestReader_WaitsForBufferSpace(t *testing.T) {
	sink := audit.NewMemorySink()
	opts := DefaultOptions()
	opts.BufferSize = 8
	a, _ := NewAdapter(&slowWriter{sink: sink, delay: 200 * time.Microsecond}, opts)
	stop := runAdapter(t, a)

	const total = 500
	lines := make([]string, total)
	for i := range lines {
		lines[i] = `10.0.0.1 - - [01/Mar/2026:10:00:00 +0000] "GET /a HTTP/1.1" 200 10 "-" "ua" 0.010`
	}

	stats, err := IngestReader(context.Background(), strings.NewReader(strings.Join(lines, "\n")), a, 1, "")
	if err != nil {
		t.Fatalf("IngestReader: %v", err)
	}
	stop()

	if stats.Captured != total || stats.Dropped != 0 {
		t.Errorf("stats = %+v, want %d captured and none dropped", stats, total)
	}
	n, _ := sink.Count(context.Background(), audit.LogTypeAccess, audit.RecordFilter{})
	if n != total {
		t.Errorf("stored = %d, want %d", n, total)
	}
}

func TestAdapter_CaptureWait(t *testing.T) {
	opts := DefaultOptions()
	opts.BufferSize = 1
	a, _ := NewAdapter(audit.NewMemorySink(), opts)

	if err := a.CaptureWait(context.Background(), sampleEntry()); err != nil {
		t.Fatalf("CaptureWait on empty buffer: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := a.CaptureWait(ctx, sampleEntry()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("CaptureWait on full buffer = %v, want DeadlineExceeded", err)
	}

	stop := runAdapter(t, a)
	stop()
	if err := a.CaptureWait(context.Background(), sampleEntry()); !errors.Is(err, ErrAdapterStopped) {
		t.Errorf("CaptureWait after stop = %v, want ErrAdapterStopped", err)
	}
}

func TestHandler_PanicRecordsServerError(t *testing.T) {
	sink := audit.NewMemorySink()
	a, _ := NewAdapter(sink, DefaultOptions())
	stop := runAdapter(t, a)

	h := Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), a, "127.0.0.1:8000")

	func() {
		defer func() {
			if r := recover(); r != "boom" {
				t.Errorf("recovered %v, want the handler panic", r)
			}
		}()
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/crash", nil))
	}()
	stop()

	got, _ := sink.QueryAccess(context.Background(), audit.RecordFilter{})
	if len(got) != 1 {
		t.Fatalf("records = %d, want 1", len(got))
	}
	if got[0].StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", got[0].StatusCode)
	}
}

func TestSplitRequestLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line, method, url, proto string
	}{
		{"GET /x HTTP/1.1", "GET", "/x", "HTTP/1.1"},
		{"GET /x", "GET", "/x", ""},
		{"-", "-", "", ""},
		{"", "", "", ""},
	}
	for _, tt := range tests {
		m, u, p := splitRequestLine(tt.line)
		if m != tt.method || u != tt.url || p != tt.proto {
			t.Errorf("splitRequestLine(%q) = %q %q %q", tt.line, m, u, p)
		}
	}
}
