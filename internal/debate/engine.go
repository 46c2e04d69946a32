package debate

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// TickInterval 計時器的固定節奏
const TickInterval = time.Second

// Mutator 是計時器套用轉換的對象，需自行保證轉換依序執行
type Mutator interface {
	Update(ctx context.Context, t Transition) (RunState, []Notice, error)
}

// Engine 在狀態為計時中時，每秒對 Mutator 套用一次 Tick
type Engine struct {
	clock    clockwork.Clock
	target   Mutator
	onNotice func(Notice)

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine 建立計時引擎；onNotice 可為 nil
func NewEngine(clock clockwork.Clock, target Mutator, onNotice func(Notice)) *Engine {
	if onNotice == nil {
		onNotice = func(Notice) {}
	}
	return &Engine{clock: clock, target: target, onNotice: onNotice}
}

// Sync 依最新狀態啟動或取消計時，每次狀態改變後都要呼叫
func (e *Engine) Sync(st RunState) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if st.IsRunning && !st.Ended() {
		if e.cancel == nil {
			e.startLocked()
		}
		return
	}
	e.stopLocked()
}

// Running 回報計時是否在進行
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancel != nil
}

// Stop 取消計時並等待 goroutine 結束
func (e *Engine) Stop() {
	e.mu.Lock()
	done := e.done
	e.stopLocked()
	e.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (e *Engine) stopLocked() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

func (e *Engine) startLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	e.gen++
	gen := e.gen
	e.cancel = cancel
	done := make(chan struct{})
	e.done = done
	ticker := e.clock.NewTicker(TickInterval)

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				next, notices, err := e.target.Update(ctx, Tick)
				if err != nil {
					if ctx.Err() == nil {
						log.Error().Err(err).Msg("timer tick failed")
					}
					e.finish(gen)
					return
				}
				for _, n := range notices {
					e.onNotice(n)
				}
				if !next.IsRunning || next.Ended() {
					e.finish(gen)
					return
				}
			}
		}
	}()
}

// finish 讓自行結束的 goroutine 清掉自己的取消函數，之後的 Sync 才能重新啟動
func (e *Engine) finish(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen == gen && e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}
