// Package reward constructs and persists loyalty rewards.
package reward

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"paystreak/internal/model"
)

// Store is the slice of the window cache the issuer writes to.
type Store interface {
	PutReward(ctx context.Context, userID string, reward model.Reward) (bool, error)
	SetCooldown(ctx context.Context, userID string, at time.Time) error
}

type Issuer struct {
	store   Store
	catalog []CatalogEntry

	// Injectable for tests; default to the wall clock and a uniform draw.
	now  func() time.Time
	pick func(n int) int
}

func NewIssuer(store Store, catalog []CatalogEntry) *Issuer {
	return &Issuer{
		store:   store,
		catalog: catalog,
		now:     time.Now,
		pick:    rand.IntN,
	}
}

// StreakID derives a stable reward id from the bill ids of a qualifying
// window. Reprocessing the same three payments always lands on the same key,
// so a redelivered event or a crash between the reward and cooldown writes
// cannot grant the streak twice.
func StreakID(window []model.BillSummary) string {
	h := sha256.New()
	for _, bill := range window {
		h.Write([]byte(bill.BillID))
		h.Write([]byte{0})
	}
	return "rwd_" + hex.EncodeToString(h.Sum(nil))[:16]
}

// Issue grants the reward for a qualifying window and starts the cooldown.
// granted is false when the same streak was already rewarded; the stored
// write is skipped and no cooldown is touched.
func (i *Issuer) Issue(ctx context.Context, userID string, window []model.BillSummary) (*model.Reward, bool, error) {
	r := i.build(userID, StreakID(window))
	stored, err := i.store.PutReward(ctx, userID, r)
	if err != nil {
		return nil, false, fmt.Errorf("reward: persist: %w", err)
	}
	if !stored {
		// Reaching issuance with the streak already stored means the cooldown
		// write was lost (crash between the two writes) or the event was
		// redelivered; either way this streak is rewarded, so the cooldown
		// must stand or the next shifted window grants again inside 7 days.
		if err := i.store.SetCooldown(ctx, userID, r.CreatedAt); err != nil {
			return &r, false, fmt.Errorf("reward: restore cooldown: %w", err)
		}
		return &r, false, nil
	}
	if err := i.store.SetCooldown(ctx, userID, r.CreatedAt); err != nil {
		return &r, true, fmt.Errorf("reward: set cooldown: %w", err)
	}
	return &r, true, nil
}

// IssueManual mints a one-off reward with a fresh random id and no cooldown,
// for the operator/test trigger endpoint.
func (i *Issuer) IssueManual(ctx context.Context, userID string) (*model.Reward, error) {
	r := i.build(userID, "rwd_"+uuid.NewString())
	if _, err := i.store.PutReward(ctx, userID, r); err != nil {
		return nil, fmt.Errorf("reward: persist: %w", err)
	}
	return &r, nil
}

func (i *Issuer) build(userID, id string) model.Reward {
	entry := i.catalog[i.pick(len(i.catalog))]
	return model.Reward{
		ID:        id,
		UserID:    userID,
		Type:      entry.Type,
		Amount:    entry.Amount,
		Status:    model.RewardStatusActive,
		CreatedAt: i.now().UTC(),
	}
}
