package application

import (
	"context"
	"fmt"
	"time"

	"github.com/Whoagir/Afisha/internal/domain/event"
	"github.com/Whoagir/Afisha/internal/domain/transaction"
)

// CapacityLedger はイベントごとの確定席数を管理する。
// Lock で取得したイベント行のロックを保持したトランザクション内でのみ Reserve/Release を呼ぶ
type CapacityLedger struct {
	eventRepo event.Repository
}

func NewCapacityLedger(eventRepo event.Repository) *CapacityLedger {
	return &CapacityLedger{eventRepo: eventRepo}
}

// Lock はイベント行をロックして取得する。同じイベントへの操作はここで直列化される
func (l *CapacityLedger) Lock(ctx context.Context, tx transaction.Tx, eventID string) (*event.Event, error) {
	ev, err := l.eventRepo.GetForUpdate(ctx, tx, eventID)
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// Reserve は確定席数に seats を加算する。定員を超える場合は event.ErrCapacityExceeded
func (l *CapacityLedger) Reserve(ctx context.Context, tx transaction.Tx, ev *event.Event, seats int, now time.Time) error {
	if err := ev.Reserve(seats); err != nil {
		return err
	}
	ev.UpdatedAt = now
	if err := l.eventRepo.UpdateBookedSeats(ctx, tx, ev); err != nil {
		return fmt.Errorf("確定席数の保存に失敗: %w", err)
	}
	return nil
}

// Release は確定席数から seats を減算する
func (l *CapacityLedger) Release(ctx context.Context, tx transaction.Tx, ev *event.Event, seats int, now time.Time) error {
	if seats <= 0 {
		return nil
	}
	ev.Release(seats)
	ev.UpdatedAt = now
	if err := l.eventRepo.UpdateBookedSeats(ctx, tx, ev); err != nil {
		return fmt.Errorf("確定席数の保存に失敗: %w", err)
	}
	return nil
}
