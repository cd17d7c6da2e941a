package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const dedupeWindow = 5 * time.Minute

// ReportDedupe suppresses repeated identical moderation reports within a
// short window. The report request still succeeds; only the notification
// dispatch is skipped.
type ReportDedupe struct {
	rdb *goredis.Client
}

func NewReportDedupe(rdb *goredis.Client) *ReportDedupe {
	return &ReportDedupe{rdb: rdb}
}

// FirstSeen returns true when this (question, reason) pair has not been
// reported within the dedupe window, and marks it seen.
func (d *ReportDedupe) FirstSeen(ctx context.Context, questionID uuid.UUID, reason string) (bool, error) {
	set, err := d.rdb.SetNX(ctx, dedupeKey(questionID, reason), "1", dedupeWindow).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check report dedupe: %w", err)
	}
	return set, nil
}

func dedupeKey(questionID uuid.UUID, reason string) string {
	sum := sha256.Sum256([]byte(reason))
	return "report_dedupe:" + questionID.String() + ":" + hex.EncodeToString(sum[:8])
}
