package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimeworker/internal/domain"
	"github.com/hamed0406/uptimeworker/internal/repo"
)

// runCheck is one check's pipeline: read, validate, probe, evaluate, log,
// persist and, on a transition, alert. Every failure is handled here.
func (s *Scheduler) runCheck(ctx context.Context, id string) {
	defer s.inflight.Done()
	s.Metrics.InFlightChecks.Inc()
	defer s.Metrics.InFlightChecks.Dec()
	defer func() {
		if rec := recover(); rec != nil {
			s.Logger.Error("check_panic",
				zap.String("check_id", id),
				zap.Any("panic", rec),
				zap.String("stack", string(debug.Stack())),
			)
		}
	}()

	rec, err := s.Store.Read(ctx, repo.KindChecks, id)
	if err != nil {
		s.Metrics.ChecksSkipped.WithLabelValues("read").Inc()
		s.Logger.Warn("check_read_error", zap.String("check_id", id), zap.Error(err))
		return
	}

	check, err := domain.ValidateRecord(rec)
	if err != nil {
		s.Metrics.ChecksSkipped.WithLabelValues("invalid").Inc()
		fields := make([]string, 0)
		for _, fe := range domain.FieldErrors(err) {
			fields = append(fields, fe.Field)
		}
		s.Logger.Warn("check_skipped_invalid",
			zap.String("check_id", id),
			zap.Strings("fields", fields),
			zap.Error(err),
		)
		return
	}

	out := s.Prober.Probe(ctx, check)
	if ctx.Err() != nil {
		// shutting down; a cancelled probe says nothing about the target
		s.Logger.Debug("check_aborted", zap.String("check_id", id))
		return
	}

	state, alert := domain.Evaluate(check, out)
	now := s.now().UTC()

	s.Metrics.Probes.WithLabelValues(string(state), string(out.Failure)).Inc()
	s.Metrics.ProbeDuration.Observe(out.LatencyMS / 1000)

	s.appendLog(id, domain.LogEntry{
		Check:   check,
		Outcome: out,
		State:   state,
		Alert:   alert,
		Time:    now.UnixMilli(),
	})

	if err := s.Store.Update(ctx, repo.KindChecks, id, domain.ApplyResult(rec, state, now)); err != nil {
		s.Metrics.PersistErrors.Inc()
		s.Logger.Warn("check_persist_error",
			zap.String("check_id", id),
			zap.String("state", string(state)),
			zap.Bool("alert_dropped", alert),
			zap.Error(err),
		)
		return
	}

	s.Logger.Debug("check_done",
		zap.String("check_id", id),
		zap.String("url", check.Protocol+"://"+check.URL),
		zap.String("state", string(state)),
		zap.String("failure", string(out.Failure)),
		zap.Float64("latency_ms", out.LatencyMS),
		zap.Bool("alert", alert),
	)
	if !alert {
		return
	}

	check.State = state
	check.LastChecked = &now
	s.sendAlert(ctx, check)
}

func (s *Scheduler) appendLog(id string, entry domain.LogEntry) {
	if s.Audit == nil {
		return
	}
	b, err := json.Marshal(entry)
	if err == nil {
		err = s.Audit.Append(id, b)
	}
	if err != nil {
		s.Logger.Warn("check_log_error", zap.String("check_id", id), zap.Error(err))
	}
}

func (s *Scheduler) sendAlert(ctx context.Context, check domain.Check) {
	msg := domain.AlertMessage(check)
	if s.Notifier == nil {
		s.Metrics.Alerts.WithLabelValues("dropped").Inc()
		s.Logger.Warn("alert_dropped_no_notifier", zap.String("check_id", check.ID), zap.String("message", msg))
		return
	}

	nctx, cancel := context.WithTimeout(ctx, s.Config.NotifyTimeout)
	defer cancel()
	if err := s.Notifier.Send(nctx, check.OwnerID, msg); err != nil {
		s.Metrics.Alerts.WithLabelValues("error").Inc()
		s.Logger.Warn("alert_send_error",
			zap.String("check_id", check.ID),
			zap.String("message", msg),
			zap.Error(fmt.Errorf("notify %s: %w", check.OwnerID, err)),
		)
		return
	}
	s.Metrics.Alerts.WithLabelValues("sent").Inc()
	s.Logger.Info("alert_sent",
		zap.String("check_id", check.ID),
		zap.String("state", string(check.State)),
	)
}
