package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-raffle/internal/logger"
	"ms-raffle/internal/models"
	"ms-raffle/internal/numbering"

	"github.com/google/uuid"
)

// ErrSerialTaken signals that a serial number is already claimed for the
// raffle. The store maps unique-constraint violations to it so a lost
// insert race is handled exactly like a pre-check collision: retry with the
// number excluded.
var ErrSerialTaken = errors.New("serial number already taken")

type QuotaStore interface {
	ExistsSerial(ctx context.Context, raffleID string, serialNumber int) (bool, error)
	InsertQuota(ctx context.Context, quota models.Quota) error
	CountByOrder(ctx context.Context, orderID string) (int, error)
}

type AwardedQuotaStore interface {
	// FindActiveByNumber returns nil when the number carries no prize.
	FindActiveByNumber(ctx context.Context, raffleID string, serialNumber int) (*models.AwardedQuota, error)
	// BindUser sets the prize holder only when none is set yet and reports
	// whether this call won the binding.
	BindUser(ctx context.Context, awardedQuotaID, userID string) (bool, error)
}

type Allocator struct {
	Quotas  QuotaStore
	Awarded AwardedQuotaStore
	Space   numbering.Space
	Logger  *logger.Logger
}

func NewAllocator(quotas QuotaStore, awarded AwardedQuotaStore, space numbering.Space, log *logger.Logger) *Allocator {
	return &Allocator{Quotas: quotas, Awarded: awarded, Space: space, Logger: log}
}

// Allocate claims count distinct serial numbers for the order, one durable
// insert at a time. It resumes idempotently: quotas already attached to the
// order (from a crashed earlier attempt or a re-delivered confirmation) count
// toward the target, so re-running never over-allocates.
//
// The caller must cap count by the raffle's remaining unallocated space before
// invoking, otherwise the rejection loop cannot terminate.
func (a *Allocator) Allocate(ctx context.Context, orderID, raffleID, userID string, count int) ([]models.AllocatedQuota, error) {
	already, err := a.Quotas.CountByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("count existing quotas for order %s: %w", orderID, err)
	}

	remaining := count - already
	if remaining <= 0 {
		a.Logger.Info("ALLOCATION", fmt.Sprintf("Order %s already holds %d quotas, nothing to allocate", orderID, already))
		return []models.AllocatedQuota{}, nil
	}
	if already > 0 {
		a.Logger.Warn("ALLOCATION", fmt.Sprintf("Resuming allocation for order %s: %d of %d already claimed", orderID, already, count))
	}

	exclude := make(map[int]struct{}, remaining)
	allocated := make([]models.AllocatedQuota, 0, remaining)

	for len(allocated) < remaining {
		if err := ctx.Err(); err != nil {
			return allocated, err
		}

		candidate := a.Space.Sample(exclude)

		// The local set only covers this call; a concurrent order against the
		// same raffle may have claimed the number, so check persisted rows too.
		exists, err := a.Quotas.ExistsSerial(ctx, raffleID, candidate)
		if err != nil {
			return allocated, fmt.Errorf("check serial %d: %w", candidate, err)
		}
		if exists {
			exclude[candidate] = struct{}{}
			continue
		}

		awarded, err := a.Awarded.FindActiveByNumber(ctx, raffleID, candidate)
		if err != nil {
			return allocated, fmt.Errorf("lookup awarded number %d: %w", candidate, err)
		}

		quota := models.Quota{
			ID:           uuid.NewString(),
			RaffleID:     raffleID,
			OrderID:      orderID,
			SerialNumber: candidate,
			Status:       models.QuotaStatusReserved,
			Active:       true,
			CreatedAt:    time.Now(),
		}
		if awarded != nil {
			quota.AwardedQuotaID = awarded.ID
		}

		if err := a.Quotas.InsertQuota(ctx, quota); err != nil {
			if errors.Is(err, ErrSerialTaken) {
				// Lost the insert race to a concurrent allocation; the unique
				// index is the source of truth, the pre-check was only a fast path.
				exclude[candidate] = struct{}{}
				continue
			}
			return allocated, fmt.Errorf("persist quota %d: %w", candidate, err)
		}

		if awarded != nil {
			won, err := a.Awarded.BindUser(ctx, awarded.ID, userID)
			if err != nil {
				return allocated, fmt.Errorf("bind prize %s: %w", awarded.ID, err)
			}
			if won {
				a.Logger.Info("ALLOCATION", fmt.Sprintf("Awarded number %d drawn by order %s, prize %s bound to %s", candidate, orderID, awarded.ID, userID))
			} else {
				a.Logger.Warn("ALLOCATION", fmt.Sprintf("Prize %s already bound, keeping first holder", awarded.ID))
			}
		}

		exclude[candidate] = struct{}{}
		allocated = append(allocated, models.AllocatedQuota{
			SerialNumber:   candidate,
			IsAwarded:      awarded != nil,
			AwardedQuotaID: quota.AwardedQuotaID,
		})
	}

	a.Logger.Info("ALLOCATION", fmt.Sprintf("Allocated %d quotas for order %s (raffle %s)", len(allocated), orderID, raffleID))
	return allocated, nil
}
