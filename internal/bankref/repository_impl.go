package bankref

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Sequence stores the last issued reference per partner.
type Sequence struct {
	PartnerID     snowflake.ID `gorm:"primaryKey"`
	LastReference string       `gorm:"type:text;not null"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Sequence) TableName() string { return "payout_reference_sequences" }

// Allocator hands out the next unique bank reference for a partner.
type Allocator interface {
	Allocate(ctx context.Context, partnerID snowflake.ID) (string, error)
}

type repository struct {
	db   *gorm.DB
	seed string
}

func NewAllocator(db *gorm.DB, seed string) Allocator {
	if seed == "" {
		seed = DefaultSeed
	}
	return &repository{db: db, seed: seed}
}

// Allocate advances the partner's sequence inside a transaction with a row
// lock, so two concurrent payouts can never mint the same reference. Two
// allocations racing to seed the same partner both pass the not-found check;
// the loser's insert hits the primary key, and one retry finds the row.
func (r *repository) Allocate(ctx context.Context, partnerID snowflake.ID) (string, error) {
	next, err := r.allocate(ctx, partnerID)
	if db.IsDuplicateKeyErr(err) {
		next, err = r.allocate(ctx, partnerID)
	}
	return next, err
}

func (r *repository) allocate(ctx context.Context, partnerID snowflake.ID) (string, error) {
	var next string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seq Sequence
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("partner_id = ?", partnerID).
			First(&seq).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			next = r.seed
			return tx.Create(&Sequence{
				PartnerID:     partnerID,
				LastReference: next,
				UpdatedAt:     time.Now().UTC(),
			}).Error
		case err != nil:
			return err
		}

		next = Next(seq.LastReference)
		return tx.Model(&Sequence{}).
			Where("partner_id = ?", partnerID).
			Updates(map[string]any{
				"last_reference": next,
				"updated_at":     time.Now().UTC(),
			}).Error
	})
	if err != nil {
		return "", err
	}
	return next, nil
}
