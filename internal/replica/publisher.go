package replica

import (
	"context"
	"errors"

	"debate_timer/internal/debate"
)

// Publisher 把完整的狀態送到房間的主題
type Publisher interface {
	Publish(ctx context.Context, roomID string, st debate.RunState) error
}

// PublisherFunc 讓普通函數實作 Publisher
type PublisherFunc func(ctx context.Context, roomID string, st debate.RunState) error

func (f PublisherFunc) Publish(ctx context.Context, roomID string, st debate.RunState) error {
	return f(ctx, roomID, st)
}

// MultiPublisher 依序發送給每個 Publisher，其中一個失敗不影響其他
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, roomID string, st debate.RunState) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, roomID, st); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type discard struct{}

func (discard) Publish(context.Context, string, debate.RunState) error { return nil }

// Discard 丟棄所有狀態，給本機房間使用
var Discard Publisher = discard{}
