package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler управляет периодической проверкой проактивных сообщений
type Scheduler struct {
	cron     *cron.Cron
	ctx      context.Context
	cancel   context.CancelFunc
	tickFunc func(ctx context.Context) error
	interval time.Duration
}

// New создает новый планировщик с заданным интервалом проверки
func New(interval time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		ctx:      ctx,
		cancel:   cancel,
		interval: interval,
	}
}

// SetTickFunction устанавливает функцию, вызываемую на каждом тике
func (s *Scheduler) SetTickFunction(f func(ctx context.Context) error) {
	s.tickFunc = f
}

// Start запускает планировщик
func (s *Scheduler) Start() error {
	if s.tickFunc == nil {
		log.Println("⚠️ Tick function not set, scheduler will not run")
		return nil
	}

	spec := fmt.Sprintf("@every %s", s.interval)
	_, err := s.cron.AddFunc(spec, func() {
		if err := s.tickFunc(s.ctx); err != nil {
			log.Printf("❌ Proactive check failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("📅 Scheduler started - proactive check every %s", s.interval)
	return nil
}

// Stop останавливает планировщик
func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	log.Println("📅 Scheduler stopped")
}

// IsRunning проверяет, запущен ли планировщик
func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}
