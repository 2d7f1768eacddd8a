package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const sweepBatchSize = 100

// Sweeper instant 미팅에서 응답 없는 초대를 주기적으로 부재중 처리
// 클라이언트가 mark_missed 를 보내지 않아도 미응답 통화가 not_answered 로 끝난다.
type Sweeper struct {
	ledger       *Ledger
	participants ParticipantStore
	log          *slog.Logger
	interval     time.Duration
	ringTimeout  time.Duration
	now          func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewSweeper 생성
// - interval: 검사 주기
// - ringTimeout: 초대 후 이 시간이 지나도 invited 면 부재중
func NewSweeper(ledger *Ledger, interval, ringTimeout time.Duration) *Sweeper {
	return &Sweeper{
		ledger:       ledger,
		participants: ledger.Participants,
		log:          ledger.Logger,
		interval:     interval,
		ringTimeout:  ringTimeout,
		now:          ledger.Now,
		stopChan:     make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start 백그라운드 루프 (go 로 호출)
func (s *Sweeper) Start() {
	defer close(s.done)
	s.log.Info("🧹 ring-timeout sweeper started", "interval", s.interval, "ring_timeout", s.ringTimeout)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepOnce()
		case <-s.stopChan:
			s.log.Info("🛑 ring-timeout sweeper stopped")
			return
		}
	}
}

// sweepOnce 한 번의 검사는 다음 주기 전에 끝나야 한다
func (s *Sweeper) sweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()
	s.Sweep(ctx)
}

// Stop 루프 종료 후 대기
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	<-s.done
}

// Sweep 한 번 검사, 부재중 처리한 수 반환
func (s *Sweeper) Sweep(ctx context.Context) int {
	threshold := s.now().Add(-s.ringTimeout)

	stale, err := s.participants.ListStaleInvitations(ctx, threshold, sweepBatchSize)
	if err != nil {
		s.log.Error("❌ failed to list stale invitations", "error", err)
		return 0
	}
	if len(stale) == 0 {
		return 0
	}

	marked := 0
	for i := range stale {
		p, err := s.ledger.markMissed(ctx, &stale[i])
		if err != nil {
			s.log.Warn("⚠️ failed to mark invitation missed", "participant_id", stale[i].ID, "error", err)
			continue
		}
		if p.Status == stale[i].Status {
			continue
		}
		marked++
	}
	if marked > 0 {
		s.log.Info("ring timeout", "missed", marked)
	}
	return marked
}
