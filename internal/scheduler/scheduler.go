package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"fplpilot/internal/autopilot"
	"fplpilot/internal/gateway/notifier"
	"fplpilot/internal/logger"

	"github.com/robfig/cron/v3"
)

// Runner advances every known user in one pass.
type Runner interface {
	AdvanceAll(ctx context.Context) ([]autopilot.UserReport, error)
	Season() string
}

// AdvanceScheduler runs the autopilot on a cron schedule and posts a summary.
type AdvanceScheduler struct {
	Spec           string
	RunImmediately bool

	runner  Runner
	notify  notifier.TextNotifier
	cron    *cron.Cron
	running atomic.Bool
	nowFn   func() time.Time
}

func NewAdvanceScheduler(runner Runner, notify notifier.TextNotifier, spec string) *AdvanceScheduler {
	if notify == nil {
		notify = notifier.Nop{}
	}
	log := cronLogger{}
	return &AdvanceScheduler{
		Spec:   strings.TrimSpace(spec),
		runner: runner,
		notify: notify,
		cron:   cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(log)), cron.WithLogger(log)),
		nowFn:  time.Now,
	}
}

// Start blocks until ctx is done. An empty Spec disables the job.
func (s *AdvanceScheduler) Start(ctx context.Context) error {
	if s.Spec == "" {
		logger.Infof("[scheduler] advance_cron empty, background advance disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.Spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("register advance job: %w", err)
	}
	logger.Infof("[scheduler] started spec=%q run_immediately=%v", s.Spec, s.RunImmediately)
	if s.RunImmediately {
		s.RunOnce(ctx)
	}
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	logger.Infof("[scheduler] stopped")
	return nil
}

// RunOnce advances all users. Overlapping runs are skipped.
func (s *AdvanceScheduler) RunOnce(ctx context.Context) []autopilot.UserReport {
	if !s.running.CompareAndSwap(false, true) {
		logger.Warnf("[scheduler] previous advance still running, skip")
		return nil
	}
	defer s.running.Store(false)

	start := s.nowFn()
	reports, err := s.runner.AdvanceAll(ctx)
	if err != nil {
		logger.Errorf("[scheduler] advance all: %v", err)
	}
	logger.With("season", s.runner.Season()).Info("[scheduler] advance pass done",
		"users", len(reports), "elapsed", s.nowFn().Sub(start).Truncate(time.Millisecond))
	if !Noteworthy(reports) {
		return reports
	}
	msg := Summary(s.runner.Season(), reports, s.nowFn())
	if err := s.notify.SendText(ctx, msg.RenderMarkdown()); err != nil {
		logger.Warnf("[scheduler] notify: %v", err)
	}
	return reports
}

// Noteworthy is true when a pass committed something or hit a real stop.
func Noteworthy(reports []autopilot.UserReport) bool {
	for _, r := range reports {
		if r.Error != "" || len(r.Report.Committed) > 0 {
			return true
		}
		switch r.Report.Stop {
		case autopilot.StopOracleUnavailable, autopilot.StopMalformed, autopilot.StopInvalid:
			return true
		}
	}
	return false
}

// Summary renders one section per user.
func Summary(seasonLabel string, reports []autopilot.UserReport, at time.Time) notifier.StructuredMessage {
	msg := notifier.StructuredMessage{
		Title:     "Autopilot " + seasonLabel,
		Timestamp: at,
	}
	committed := 0
	for _, r := range reports {
		var lines []string
		if n := len(r.Report.Committed); n > 0 {
			committed += n
			lines = append(lines, "committed gw "+joinInts(r.Report.Committed))
		}
		switch {
		case r.Error != "":
			lines = append(lines, "error: "+r.Error)
		case r.Report.Stop != autopilot.StopNone:
			line := fmt.Sprintf("stopped: %s", r.Report.Stop)
			if r.Report.StoppedAt > 0 {
				line += fmt.Sprintf(" at gw %d", r.Report.StoppedAt)
			}
			if r.Report.Detail != "" {
				line += " (" + r.Report.Detail + ")"
			}
			lines = append(lines, line)
		default:
			lines = append(lines, "up to date")
		}
		msg.Sections = append(msg.Sections, notifier.MessageSection{Title: r.User, Lines: lines})
	}
	msg.Footer = fmt.Sprintf("%d users, %d gameweeks committed", len(reports), committed)
	return msg
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}

// cronLogger routes cron's own messages into slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	logger.Slog().Debug("[cron] "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logger.Slog().Error("[cron] "+msg, append([]any{"error", err}, keysAndValues...)...)
}
