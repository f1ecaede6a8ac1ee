package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"plantcare/internal/calendar"
	"plantcare/internal/care"
	"plantcare/internal/matcher"
	"plantcare/internal/planner"
	"plantcare/internal/recurrence"
	logx "plantcare/pkg/logx"
)

// Planner is the subset of *planner.Service the API calls.
type Planner interface {
	GetTasksForDay(ctx context.Context, day any) ([]care.Task, error)
	GetDotForDay(ctx context.Context, day any) (matcher.DotState, error)
	GetDotsForMonth(ctx context.Context, year int, month time.Month) (map[calendar.DayKey]matcher.DotState, error)
	CreateTaskWithRecurrence(ctx context.Context, d care.TaskDraft, scheduleFuture bool) (planner.CreateResult, error)
	CompleteTask(ctx context.Context, id string, scheduleFuture bool) (planner.CompleteResult, error)
	DeleteTask(ctx context.Context, id string) error
	RunAutoWateringSweep(ctx context.Context) (recurrence.Summary, error)
}

const maxBodyBytes = 64 << 10

type handler struct {
	p     Planner
	log   logx.Logger
	sweep *rate.Limiter
}

// NewHandler builds the API mux. sweepPerMin bounds POST /api/sweeps.
func NewHandler(p Planner, token string, sweepPerMin int, log logx.Logger) http.Handler {
	if log.IsZero() {
		log = logx.Nop()
	}
	if sweepPerMin <= 0 {
		sweepPerMin = 1
	}
	h := &handler{
		p:     p,
		log:   log,
		sweep: rate.NewLimiter(rate.Every(time.Minute/time.Duration(sweepPerMin)), 1),
	}

	auth := func(fn http.HandlerFunc) http.Handler { return withAuth(token, fn) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /api/days/{day}/tasks", auth(h.dayTasks))
	mux.Handle("GET /api/days/{day}/dot", auth(h.dayDot))
	mux.Handle("GET /api/months/{year}/{month}/dots", auth(h.monthDots))
	mux.Handle("POST /api/tasks", auth(h.createTask))
	mux.Handle("POST /api/tasks/{id}/complete", auth(h.completeTask))
	mux.Handle("DELETE /api/tasks/{id}", auth(h.deleteTask))
	mux.Handle("POST /api/sweeps", auth(h.runSweep))
	return mux
}

func (h *handler) dayTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.p.GetTasksForDay(r.Context(), r.PathValue("day"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []care.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *handler) dayDot(w http.ResponseWriter, r *http.Request) {
	dot, err := h.p.GetDotForDay(r.Context(), r.PathValue("day"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"day": r.PathValue("day"), "dot": dot})
}

func (h *handler) monthDots(w http.ResponseWriter, r *http.Request) {
	year, err1 := strconv.Atoi(r.PathValue("year"))
	month, err2 := strconv.Atoi(r.PathValue("month"))
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, "year and month must be numbers")
		return
	}
	dots, err := h.p.GetDotsForMonth(r.Context(), year, time.Month(month))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dots)
}

type createResponse struct {
	planner.CreateResult
	Error string `json:"error,omitempty"`
}

func (h *handler) createTask(w http.ResponseWriter, r *http.Request) {
	var d care.TaskDraft
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	res, err := h.p.CreateTaskWithRecurrence(r.Context(), d, scheduleFuture(r))
	if err != nil && res.Created.ID == "" {
		h.fail(w, r, err)
		return
	}
	out := createResponse{CreateResult: res}
	if err != nil {
		// The task exists; only some recurrences are missing.
		out.Error = err.Error()
		h.log.Warn("recurrence expansion incomplete", logx.String("task", res.Created.ID), logx.Err(err))
	}
	writeJSON(w, http.StatusCreated, out)
}

type completeResponse struct {
	planner.CompleteResult
	Error string `json:"error,omitempty"`
}

func (h *handler) completeTask(w http.ResponseWriter, r *http.Request) {
	res, err := h.p.CompleteTask(r.Context(), r.PathValue("id"), scheduleFuture(r))
	if err != nil && res.Completed.ID == "" {
		h.fail(w, r, err)
		return
	}
	out := completeResponse{CompleteResult: res}
	if err != nil {
		out.Error = err.Error()
		h.log.Warn("recurrence expansion incomplete", logx.String("task", res.Completed.ID), logx.Err(err))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.p.DeleteTask(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) runSweep(w http.ResponseWriter, r *http.Request) {
	if !h.sweep.Allow() {
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, "sweep rate limit exceeded")
		return
	}
	sum, err := h.p.RunAutoWateringSweep(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": sum.String(), "summary": sum})
}

func scheduleFuture(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("schedule_future"))
	return v
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("api request failed", logx.String("method", r.Method), logx.String("path", r.URL.Path), logx.Err(err))
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, care.ErrInvalidDate),
		errors.Is(err, care.ErrInvalidTask),
		errors.Is(err, recurrence.ErrInvalidFrequency):
		return http.StatusBadRequest
	case errors.Is(err, care.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
