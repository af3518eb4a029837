package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// lockProfilePairForUpdate takes row locks on both profiles in canonical
// order so concurrent mutations of the same pair serialize instead of
// deadlocking.
func lockProfilePairForUpdate(ctx context.Context, q DBConn, userA, userB uuid.UUID) error {
	first, second := PairKey(userA, userB)

	if err := lockProfileForUpdate(ctx, q, first); err != nil {
		return err
	}
	if first == second {
		return nil
	}
	return lockProfileForUpdate(ctx, q, second)
}

func lockProfileForUpdate(ctx context.Context, q DBConn, userID uuid.UUID) error {
	var lockedID uuid.UUID
	err := q.QueryRow(ctx, `SELECT id FROM profiles WHERE id = $1 FOR UPDATE`, userID).Scan(&lockedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	if err != nil {
		return fmt.Errorf("lock profile: %w", err)
	}
	return nil
}
