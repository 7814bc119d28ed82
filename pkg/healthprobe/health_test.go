package healthprobe

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func serve(t *testing.T, handler http.HandlerFunc, path string) (int, HealthResponse) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	handler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s, want application/json", ct)
	}

	var body HealthResponse
	err := json.NewDecoder(resp.Body).Decode(&body)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, body
}

func TestNew(t *testing.T) {
	hc := New()

	if time.Since(hc.startTime) > time.Second {
		t.Errorf("start time is too old: %v", hc.startTime)
	}
	if hc.ready.Load() {
		t.Error("HealthChecker should not be ready by default")
	}
}

func TestHealth_AlwaysReturnsOK(t *testing.T) {
	hc := New()
	hc.AddCheck("session", func() error { return errors.New("locked") })

	for _, ready := range []bool{false, true} {
		hc.SetReady(ready)

		code, body := serve(t, hc.Health(), "/health")
		if code != http.StatusOK {
			t.Errorf("health status = %d, want %d (ready=%v)", code, http.StatusOK, ready)
		}
		if body.Status != "healthy" || body.Uptime == "" {
			t.Errorf("unexpected health body: %+v", body)
		}
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		ready      bool
		checkErr   error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "starting",
			ready:      false,
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "not_ready",
		},
		{
			name:       "started_checks_pass",
			ready:      true,
			wantStatus: http.StatusOK,
			wantBody:   "ready",
		},
		{
			name:       "started_check_fails",
			ready:      true,
			checkErr:   errors.New("session is locked"),
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "not_ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := New()
			hc.SetReady(tt.ready)
			hc.AddCheck("session", func() error { return tt.checkErr })

			code, body := serve(t, hc.Ready(), "/ready")
			if code != tt.wantStatus {
				t.Errorf("status = %d, want %d", code, tt.wantStatus)
			}
			if body.Status != tt.wantBody {
				t.Errorf("body status = %s, want %s", body.Status, tt.wantBody)
			}
			if tt.checkErr != nil && body.Checks["session"] != tt.checkErr.Error() {
				t.Errorf("checks = %v, want session failure", body.Checks)
			}
		})
	}
}

func TestReady_FollowsCheckState(t *testing.T) {
	hc := New()
	hc.SetReady(true)

	var unlocked atomic.Bool
	hc.AddCheck("session", func() error {
		if !unlocked.Load() {
			return errors.New("session is locked")
		}
		return nil
	})

	code, body := serve(t, hc.Ready(), "/ready")
	if code != http.StatusServiceUnavailable {
		t.Errorf("locked status = %d, want 503", code)
	}
	if body.Message != "failing checks: session" {
		t.Errorf("message = %q", body.Message)
	}

	unlocked.Store(true)
	code, _ = serve(t, hc.Ready(), "/ready")
	if code != http.StatusOK {
		t.Errorf("unlocked status = %d, want 200", code)
	}
}

func TestHealthChecker_ConcurrentAccess(t *testing.T) {
	hc := New()
	handler := hc.Ready()

	done := make(chan bool)

	go func() {
		for i := 0; i < 100; i++ {
			hc.SetReady(i%2 == 0)
			hc.AddCheck("c", func() error { return nil })
		}
		done <- true
	}()

	go func() {
		for i := 0; i < 100; i++ {
			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			w := httptest.NewRecorder()
			handler(w, req)
		}
		done <- true
	}()

	<-done
	<-done
}
