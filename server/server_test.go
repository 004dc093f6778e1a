package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/punchclock/am"
	"github.com/teranos/punchclock/db"
	"github.com/teranos/punchclock/errors"
	pctest "github.com/teranos/punchclock/internal/testing"
	"github.com/teranos/punchclock/mutation"
	"github.com/teranos/punchclock/remote"
	"github.com/teranos/punchclock/store"
	psync "github.com/teranos/punchclock/sync"
	"github.com/teranos/punchclock/timesheet"
	"github.com/teranos/punchclock/tracker"
)

var monday = time.Date(2026, time.October, 12, 9, 0, 0, 0, time.UTC)

type testServer struct {
	srv *Server
	ts  *httptest.Server
}

// Loggers stay nil here: hub and session goroutines may log after a test
// returns, which zaptest does not allow.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	conn := pctest.CreateTestDB(t, db.SchemaRemote)
	srv, err := New(conn, am.ServerConfig{JWTSecret: "test-secret-0123456789abcdef", TokenExpiry: "1h"}, nil)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })
	return &testServer{srv: srv, ts: ts}
}

func (s *testServer) token(t *testing.T, email, device string) *session {
	t.Helper()
	issued, err := s.srv.Auth().IssueToken(context.Background(), email, "", device, device)
	require.NoError(t, err)
	return &session{userID: issued.UserID, sessionID: issued.SessionID, value: issued.Token}
}

type session struct {
	userID    string
	sessionID string
	value     string
}

func (s *testServer) client(t *testing.T, tok *session) *remote.Client {
	t.Helper()
	c, err := remote.New(remote.Config{URL: s.ts.URL, Token: tok.value, HTTPClient: s.ts.Client()}, nil)
	require.NoError(t, err)
	return c
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.ts.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, remote.PathHealth, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body remote.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, remote.HealthResponse{Status: "ok", APIVersion: remote.APIVersion}, body)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	version, err := s.client(t, s.token(t, "ana@example.com", "phone")).CheckCompatibility(context.Background())
	require.NoError(t, err)
	assert.Equal(t, remote.APIVersion, version)
}

func TestSync_RequiresAuth(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
	}{
		{"push without token", http.MethodPost, "/api/sync/jobs", ""},
		{"list without token", http.MethodGet, "/api/jobs", ""},
		{"garbage token", http.MethodGet, "/api/jobs", "not-a-jwt"},
		{"change feed without token", http.MethodGet, remote.PathChanges, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.do(t, tt.method, tt.path, tt.token, nil)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}

	tok := s.token(t, "ana@example.com", "phone")
	require.NoError(t, s.srv.Auth().Revoke(context.Background(), tok.sessionID))
	_, err := s.client(t, tok).GetJobs(context.Background())
	assert.True(t, errors.IsAuthError(err), "revoked session surfaces as auth error at the client")
}

func TestSync_BadRequests(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, "ana@example.com", "phone")

	resp := s.do(t, http.MethodGet, "/api/invoices", tok.value, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/sync/jobs", tok.value, remote.SyncRequest{
		Operation: "merge",
		Items:     []json.RawMessage{json.RawMessage(`{"id":"j1"}`)},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/sync/time_entries", tok.value, remote.SyncRequest{
		Operation: mutation.OpUpsert,
		Items:     []json.RawMessage{json.RawMessage(`{"id":"e1"}`)},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "entries need a job_id")

	resp = s.do(t, http.MethodPost, "/api/sync/jobs", tok.value, map[string]any{"operation": "upsert", "extra": true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSync_UpsertIsIdempotent(t *testing.T) {
	s := newTestServer(t)
	c := s.client(t, s.token(t, "ana@example.com", "phone"))
	ctx := context.Background()

	job := timesheet.Job{ID: "j1", Title: "Acme", HourlyRate: 20, Settings: timesheet.DefaultJobSettings(), UpdatedAt: 1}
	for i := 0; i < 3; i++ {
		res, err := c.SyncJobs(ctx, []timesheet.Job{job}, mutation.OpUpsert)
		require.NoError(t, err)
		assert.Equal(t, psync.Result{Success: true, Count: 1}, res)
	}

	job.Title = "Acme Corp"
	job.UpdatedAt = 2
	_, err := c.SyncJobs(ctx, []timesheet.Job{job}, mutation.OpUpsert)
	require.NoError(t, err)

	jobs, err := c.GetJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, job, jobs[0], "last write replaces the whole record")

	// deleting twice is fine; the second call changes nothing
	res, err := c.SyncJobs(ctx, []timesheet.Job{job}, mutation.OpDelete)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	res, err = c.SyncJobs(ctx, []timesheet.Job{job}, mutation.OpDelete)
	require.NoError(t, err)
	assert.Equal(t, psync.Result{Success: true, Count: 0}, res)

	jobs, err = c.GetJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestSync_OwnershipIsolation(t *testing.T) {
	s := newTestServer(t)
	ana := s.token(t, "ana@example.com", "phone")
	bob := s.token(t, "bob@example.com", "laptop")
	anaClient, bobClient := s.client(t, ana), s.client(t, bob)
	ctx := context.Background()

	entry := timesheet.TimeEntry{ID: "e1", JobID: "j1", StartTime: 1000, EndTime: timesheet.Ptr(int64(5000)), Note: "ana's", Breaks: []timesheet.Break{}}
	_, err := anaClient.SyncTimeEntries(ctx, []timesheet.TimeEntry{entry}, mutation.OpUpsert)
	require.NoError(t, err)

	forged := entry
	forged.Note = "bob's"
	res, err := bobClient.SyncTimeEntries(ctx, []timesheet.TimeEntry{forged}, mutation.OpUpsert)
	require.NoError(t, err)
	assert.Zero(t, res.Count, "a row owned by another user is never overwritten")

	res, err = bobClient.SyncTimeEntries(ctx, []timesheet.TimeEntry{forged}, mutation.OpDelete)
	require.NoError(t, err)
	assert.Zero(t, res.Count, "delete requires ownership")

	entries, err := anaClient.GetTimeEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ana's", entries[0].Note)

	entries, err = bobClient.GetTimeEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	owner, err := s.srv.store.Owner(ctx, mutation.EntityTimeEntry, "e1")
	require.NoError(t, err)
	assert.Equal(t, ana.userID, owner)
}

// device is one local installation talking to the test server
type device struct {
	repo    *store.MemoryStore
	tracker *tracker.Tracker
	engine  *psync.Engine
	client  *remote.Client
}

func (s *testServer) device(t *testing.T, tok *session) *device {
	t.Helper()
	repo := store.NewMemoryStore()
	queue := mutation.NewQueue(mutation.NewMemoryBackend(), nil)
	tr := tracker.New(repo, queue, tracker.Config{
		UserID:   tok.userID,
		Location: time.UTC,
		Now:      func() time.Time { return monday },
	})
	c := s.client(t, tok)
	return &device{
		repo:    repo,
		tracker: tr,
		engine:  psync.NewEngine(repo, queue, c, tr.Locker(), nil),
		client:  c,
	}
}

func TestPushThenPull_RoundTrip(t *testing.T) {
	s := newTestServer(t)
	phoneTok := s.token(t, "ana@example.com", "phone")
	laptopTok := s.token(t, "ana@example.com", "laptop")
	require.Equal(t, phoneTok.userID, laptopTok.userID)
	phone, laptop := s.device(t, phoneTok), s.device(t, laptopTok)
	ctx := context.Background()

	job, err := phone.tracker.CreateJob(ctx, tracker.JobInput{Title: "Acme", HourlyRate: 20})
	require.NoError(t, err)
	entry, err := phone.tracker.AddTimeEntry(ctx, job.ID, tracker.EntryInput{
		StartTime: monday.UnixMilli(),
		EndTime:   timesheet.Ptr(monday.Add(8 * time.Hour).UnixMilli()),
		Note:      "on site",
	})
	require.NoError(t, err)
	_, err = phone.tracker.PayPeriods(ctx, job.ID)
	require.NoError(t, err)

	pushed, _, err := phone.engine.FullSync(ctx, phoneTok.userID)
	require.NoError(t, err)
	assert.Equal(t, 3, pushed.Pushed)

	_, pulled, err := laptop.engine.FullSync(ctx, laptopTok.userID)
	require.NoError(t, err)
	assert.Equal(t, psync.PullResult{Jobs: 1, TimeEntries: 1, PayPeriods: 1}, pulled)

	gotEntry, err := laptop.repo.GetTimeEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, *entry, *gotEntry)

	stats, err := laptop.tracker.JobStats(ctx, job.ID)
	require.NoError(t, err)
	assert.InDelta(t, 160.0, stats.Earnings, 1e-9)

	// a delete on the laptop removes the server copy
	require.NoError(t, laptop.tracker.DeleteTimeEntry(ctx, entry.ID))
	_, _, err = laptop.engine.FullSync(ctx, laptopTok.userID)
	require.NoError(t, err)
	entries, err := phone.client.GetTimeEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func receive(t *testing.T, ch <-chan psync.Change) psync.Change {
	t.Helper()
	select {
	case c, ok := <-ch:
		require.True(t, ok, "feed closed")
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}
	return psync.Change{}
}

func TestChangeFeed_NotifiesOtherDevices(t *testing.T) {
	s := newTestServer(t)
	phoneTok := s.token(t, "ana@example.com", "phone")
	laptopTok := s.token(t, "ana@example.com", "laptop")
	bobTok := s.token(t, "bob@example.com", "tablet")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	laptopFeed, err := s.client(t, laptopTok).Changes().Subscribe(ctx)
	require.NoError(t, err)
	phoneFeed, err := s.client(t, phoneTok).Changes().Subscribe(ctx)
	require.NoError(t, err)
	bobFeed, err := s.client(t, bobTok).Changes().Subscribe(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return s.srv.Hub().ClientCount(phoneTok.userID) == 2 && s.srv.Hub().ClientCount(bobTok.userID) == 1
	}, 5*time.Second, 10*time.Millisecond)

	job := timesheet.Job{ID: "j1", Title: "Acme", HourlyRate: 20}
	_, err = s.client(t, phoneTok).SyncJobs(ctx, []timesheet.Job{job}, mutation.OpUpsert)
	require.NoError(t, err)

	got := receive(t, laptopFeed)
	assert.Equal(t, psync.Change{Type: psync.ChangeTypeChanged, EntityType: mutation.EntityJob}, got)

	select {
	case c := <-phoneFeed:
		t.Fatalf("pushing device was notified: %+v", c)
	case c := <-bobFeed:
		t.Fatalf("other user was notified: %+v", c)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestStop_ClosesFeedsAndDrains(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, "ana@example.com", "phone")

	feed, err := s.client(t, tok).Changes().Subscribe(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.srv.Hub().ClientCount(tok.userID) == 1 },
		5*time.Second, 10*time.Millisecond)

	require.NoError(t, s.srv.Stop(context.Background()))
	assert.Equal(t, StateStopped, s.srv.State())

	select {
	case _, ok := <-feed:
		assert.False(t, ok, "feed closes when the server stops")
	case <-time.After(5 * time.Second):
		t.Fatal("feed still open after stop")
	}

	resp := s.do(t, http.MethodGet, remote.PathHealth, "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.NoError(t, s.srv.Stop(context.Background()), "second stop is a no-op")
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost"})
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:5173", true},
		{"https://evil.example.com", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, remote.PathChanges, nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, check(r), tt.origin)
	}
}
