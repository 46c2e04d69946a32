package registry

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Evicter 依最後活動時間移除項目，回傳被移除的 ID
type Evicter interface {
	Evict(ctx context.Context, before time.Time) ([]string, error)
}

// Janitor 定期移除太久沒有活動的房間，主持人離線後房間不會永遠存在
type Janitor struct {
	registry Registry
	clock    clockwork.Clock
	ttl      time.Duration
	interval time.Duration
	onEvict  func(id string)
	extra    []Evicter
}

// NewJanitor 建立清理器；onEvict 可為 nil
func NewJanitor(r Registry, clock clockwork.Clock, ttl, interval time.Duration, onEvict func(id string)) *Janitor {
	if onEvict == nil {
		onEvict = func(string) {}
	}
	return &Janitor{registry: r, clock: clock, ttl: ttl, interval: interval, onEvict: onEvict}
}

// Also 讓每次清理一併處理不在登記中的項目，例如本機房間的辯論
func (j *Janitor) Also(e Evicter) *Janitor {
	j.extra = append(j.extra, e)
	return j
}

// Run 持續清理直到 ctx 結束
func (j *Janitor) Run(ctx context.Context) {
	ticker := j.clock.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			j.Sweep(ctx)
		}
	}
}

// Sweep 執行一次清理，回傳登記中被移除的房間
func (j *Janitor) Sweep(ctx context.Context) []string {
	before := j.clock.Now().Add(-j.ttl)
	ids, err := j.registry.Evict(ctx, before)
	if err != nil {
		log.Error().Err(err).Msg("room eviction failed")
	}
	for _, id := range ids {
		log.Info().Str("room", id).Dur("ttl", j.ttl).Msg("evicted idle room")
		j.onEvict(id)
	}

	for _, e := range j.extra {
		if _, err := e.Evict(ctx, before); err != nil {
			log.Error().Err(err).Msg("eviction failed")
		}
	}
	return ids
}
