package db

import (
	"context"
	"time"
)

// VacationResponse represents a record of a vacation auto-response sent to a sender
type VacationResponse struct {
	ID            int64
	UserID        int64
	SenderAddress string
	ResponseDate  time.Time
	CreatedAt     time.Time
}

// RecordVacationResponse records that a vacation response was sent to a specific sender
func (db *Database) RecordVacationResponse(ctx context.Context, userID int64, senderAddress string) error {
	now := time.Now()
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO vacation_responses (user_id, sender_address, response_date, created_at)
		VALUES ($1, $2, $3, $4)
	`, userID, senderAddress, now, now)

	return err
}

// HasRecentVacationResponse checks if a vacation response was sent to this sender within the specified duration
func (db *Database) HasRecentVacationResponse(ctx context.Context, userID int64, senderAddress string, duration time.Duration) (bool, error) {
	cutoffTime := time.Now().Add(-duration)

	var exists bool
	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM vacation_responses 
			WHERE user_id = $1 
			AND sender_address = $2 
			AND response_date > $3
		)
	`, userID, senderAddress, cutoffTime).Scan(&exists)

	return exists, err
}

// IsVacationResponseAllowed satisfies sieveengine.VacationOracle,
// scoping HasRecentVacationResponse's sender lookup by handle so a
// script with more than one labeled vacation action tracks each
// cooldown independently, per RFC 5230 §4.4's :handle.
func (db *Database) IsVacationResponseAllowed(ctx context.Context, userID int64, originalSender, handle string, duration time.Duration) (bool, error) {
	recent, err := db.HasRecentVacationResponse(ctx, userID, vacationKey(originalSender, handle), duration)
	if err != nil {
		return false, err
	}
	return !recent, nil
}

// RecordVacationResponseSent satisfies sieveengine.VacationOracle.
func (db *Database) RecordVacationResponseSent(ctx context.Context, userID int64, originalSender, handle string) error {
	return db.RecordVacationResponse(ctx, userID, vacationKey(originalSender, handle))
}

func vacationKey(sender, handle string) string {
	if handle == "" {
		return sender
	}
	return sender + "\x00" + handle
}

// CleanupOldVacationResponses removes vacation response records older than the specified duration
func (db *Database) CleanupOldVacationResponses(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoffTime := time.Now().Add(-olderThan)

	result, err := db.Pool.Exec(ctx, `
		DELETE FROM vacation_responses
		WHERE response_date < $1
	`, cutoffTime)

	if err != nil {
		return 0, err
	}

	return result.RowsAffected(), nil
}
