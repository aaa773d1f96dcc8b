package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/robfig/cron/v3"

	"SectorCycles/internal/notifier"
)

// Scheduler triggers periodic refreshes and answers chat commands.
type Scheduler struct {
	Cron     *cron.Cron
	Pipeline *Pipeline
	Ctx      context.Context
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, p *Pipeline) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Pipeline: p,
		Ctx:      ctx,
	}
}

// RegisterRefresh schedules a full rebuild. An empty expression registers nothing.
func (s *Scheduler) RegisterRefresh(spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := s.Cron.AddFunc(spec, s.refreshTask); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	log.Printf("[INFO] refresh scheduled: %s", spec)
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

func (s *Scheduler) refreshTask() {
	log.Println("[INFO] running scheduled refresh")
	if _, err := s.Pipeline.Refresh(s.Ctx); err != nil {
		log.Printf("[ERROR] scheduled refresh: %v", err)
	}
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	var cmd string
	if fields := strings.Fields(command); len(fields) > 0 {
		cmd = strings.TrimPrefix(fields[0], "/")
	}
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "refresh":
		// Refresh sends its own run summary, or a warning when every fetch failed.
		if _, err := s.Pipeline.Refresh(ctx); err != nil && !errors.Is(err, ErrAllFailed) {
			return fmt.Sprintf("❌ refresh failed: %v", err)
		}
		return ""
	}

	snap := s.Pipeline.Current()
	if snap == nil {
		return "No data yet, the first refresh is still running"
	}
	switch cmd {
	case "status":
		return notifier.FormatRunSummary(snap)
	case "failures":
		return notifier.FormatFailures(snap.Failures)
	}
	if p, ok := snap.Period(cmd); ok {
		return notifier.FormatPeriodSummary(p, snap.Tables[p.Name])
	}

	var b strings.Builder
	b.WriteString("Available commands:\n• /status\n• /failures\n• /refresh\n")
	for _, name := range snap.PeriodNames() {
		b.WriteString("• /" + name + "\n")
	}
	return b.String()
}
