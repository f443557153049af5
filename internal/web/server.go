// Package web is the HTTP boundary: it schedules check-ins, runs one on
// demand and lists the queue.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/example/checkin-scheduler/internal/auth"
	"github.com/example/checkin-scheduler/internal/checkin"
	"github.com/example/checkin-scheduler/internal/metrics"
	"github.com/example/checkin-scheduler/internal/tasks"
)

const maxBody = 1 << 20

// Scheduler is satisfied by *checkin.Scheduler. commit runs before the
// confirmation email goes out.
type Scheduler interface {
	ScheduleWith(ctx context.Context, req checkin.ScheduleRequest, commit func(context.Context, checkin.Task) error) (checkin.Task, error)
}

type Executor interface {
	CheckIn(ctx context.Context, task checkin.Task) (checkin.Result, error)
}

type Server struct {
	Scheduler Scheduler
	Executor  Executor
	// Queue receives every task that still has a window. Nil disables
	// queueing and GET /v1/tasks.
	Queue tasks.Queue
	// Sealer issues tokens for returned tasks. Nil disables tokens.
	Sealer     *auth.Sealer
	APIKeyHash string
	Metrics    metrics.Recorder
	Gatherer   prometheus.Gatherer
	Logger     *slog.Logger
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	if s.Gatherer != nil {
		mux.Handle("/metrics", metrics.Handler(s.Gatherer))
	}

	api := http.NewServeMux()
	api.HandleFunc("POST /v1/schedule", s.handleSchedule)
	api.HandleFunc("POST /v1/checkin", s.handleCheckIn)
	api.HandleFunc("GET /v1/tasks", s.handleTasks)
	mux.Handle("/v1/", auth.RequireAPIKey(s.APIKeyHash, api))

	return mux
}

type scheduleResponse struct {
	Task    checkin.Task `json:"task"`
	Token   string       `json:"token,omitempty"`
	EntryID string       `json:"entry_id,omitempty"`
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var req checkin.ScheduleRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
		s.metrics().RecordScheduleFailure("invalid")
		writeError(w, http.StatusBadRequest, "malformed request: "+err.Error())
		return
	}

	var (
		resp      scheduleResponse
		commitErr error
	)
	task, err := s.Scheduler.ScheduleWith(r.Context(), req, func(ctx context.Context, task checkin.Task) error {
		if resp.Token, commitErr = s.seal(task); commitErr != nil {
			return commitErr
		}
		if resp.EntryID, commitErr = s.enqueue(ctx, task); commitErr != nil {
			commitErr = fmt.Errorf("queue task: %w", commitErr)
		}
		return commitErr
	})
	if commitErr != nil {
		s.metrics().RecordScheduleFailure("queue")
		s.logger().Error("schedule commit failed",
			slog.String("confirmation_number", req.ConfirmationNumber),
			slog.String("error", commitErr.Error()),
		)
		writeError(w, http.StatusInternalServerError, commitErr.Error())
		return
	}
	if err != nil {
		status, reason := scheduleFailure(err)
		s.metrics().RecordScheduleFailure(reason)
		s.logger().Warn("schedule failed",
			slog.String("confirmation_number", req.ConfirmationNumber),
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
		writeError(w, status, err.Error())
		return
	}
	s.metrics().RecordScheduled(task.CheckInTimes.Next != nil)

	resp.Task = task
	if task.CheckInTimes.Next == nil {
		// nothing committed; still hand back a token for the task
		if resp.Token, err = s.seal(task); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func scheduleFailure(err error) (int, string) {
	switch {
	case errors.Is(err, checkin.ErrInvalid):
		return http.StatusBadRequest, "invalid"
	case errors.Is(err, checkin.ErrReservationNotFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusBadGateway, "lookup"
	}
}

type checkInResponse struct {
	CheckedIn bool            `json:"checked_in"`
	Outcome   checkin.Outcome `json:"outcome"`
	Successor *checkin.Task   `json:"successor,omitempty"`
	Token     string          `json:"token,omitempty"`
	EntryID   string          `json:"entry_id,omitempty"`
	Error     string          `json:"error,omitempty"`
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	task, err := s.taskFromBody(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.Executor.CheckIn(r.Context(), task)
	s.metrics().RecordCheckIn(result.Outcome.String())

	resp := checkInResponse{CheckedIn: result.CheckedIn(), Outcome: result.Outcome}
	if err != nil {
		resp.Error = err.Error()
		status := http.StatusBadGateway
		if errors.Is(err, checkin.ErrInvalid) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, resp)
		return
	}

	status := http.StatusOK
	if result.Outcome == checkin.OutcomeContinue {
		status = http.StatusAccepted
		resp.Successor = result.Successor
		if resp.EntryID, err = s.enqueue(r.Context(), *result.Successor); err != nil {
			resp.Error = "queue successor: " + err.Error()
			writeJSON(w, http.StatusInternalServerError, resp)
			return
		}
		if resp.Token, err = s.seal(*result.Successor); err != nil {
			resp.Error = err.Error()
			writeJSON(w, http.StatusInternalServerError, resp)
			return
		}
	}
	writeJSON(w, status, resp)
}

// taskFromBody accepts {"token": "..."} or a task in either JSON shape.
func (s *Server) taskFromBody(body []byte) (checkin.Task, error) {
	var sealed struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &sealed); err == nil && sealed.Token != "" {
		if s.Sealer == nil {
			return checkin.Task{}, errors.New("task tokens are not enabled")
		}
		return s.Sealer.Open(sealed.Token)
	}
	return checkin.ParseTask(body)
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	if s.Queue == nil {
		writeError(w, http.StatusServiceUnavailable, "task queue not configured")
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	entries, err := s.Queue.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": entries})
}

func (s *Server) enqueue(ctx context.Context, task checkin.Task) (string, error) {
	if s.Queue == nil {
		return "", nil
	}
	e, ok, err := tasks.EnqueueNext(ctx, s.Queue, task, "")
	if err != nil || !ok {
		return "", err
	}
	s.logger().Info("task queued",
		slog.String("task_id", e.ID),
		slog.String("confirmation_number", task.ConfirmationNumber),
		slog.Time("run_at", e.RunAt),
	)
	return e.ID, nil
}

func (s *Server) seal(task checkin.Task) (string, error) {
	if s.Sealer == nil {
		return "", nil
	}
	return s.Sealer.Seal(task)
}

func (s *Server) metrics() metrics.Recorder {
	if s.Metrics != nil {
		return s.Metrics
	}
	return metrics.Nop{}
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Start serves h on addr until ctx is done.
func Start(ctx context.Context, addr string, h http.Handler, log *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
