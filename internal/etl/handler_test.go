package etl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type stubRunner struct {
	summary *RunSummary
	err     error
	calls   int
}

func (s *stubRunner) Run(ctx context.Context) (*RunSummary, error) {
	s.calls++
	return s.summary, s.err
}

func TestHandlerRun_Success(t *testing.T) {
	runner := &stubRunner{
		summary: &RunSummary{
			RunID: uuid.New(),
			State: StateCommitted,
			Facts: &DeriveReport{Candidates: 3, Inserted: 2, Skipped: 1},
		},
	}
	h := NewHandler(runner, zerolog.Nop())

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/etl/run", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Run(c); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if runner.calls != 1 {
		t.Errorf("expected 1 runner call, got %d", runner.calls)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["state"] != string(StateCommitted) {
		t.Errorf("expected committed state, got %v", body["state"])
	}
}

func TestHandlerRun_Conflict(t *testing.T) {
	runner := &stubRunner{err: ErrRunInProgress}
	h := NewHandler(runner, zerolog.Nop())

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/etl/run", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Run(c)
	if err == nil {
		t.Fatal("expected error when a run is in progress")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", httpErr.Code)
	}
}

func TestHandlerRun_Failure(t *testing.T) {
	runner := &stubRunner{err: errors.New("stage blew up")}
	h := NewHandler(runner, zerolog.Nop())

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/etl/run", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Run(c)
	if err == nil {
		t.Fatal("expected error for failed run")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", httpErr.Code)
	}
}
