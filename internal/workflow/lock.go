package workflow

import (
	"time"

	"github.com/civicatlas/stagedesk/internal/models"
)

// acquireLock evaluates a lock request against the record's current lock.
// A grant mutates rec in place; the caller commits it through the store's
// conditional update so two racing acquires can never both win.
//
// The lock is granted when no lock is present, the lock has expired, or the
// requester already holds it (idempotent re-acquire). Re-acquiring refreshes
// the TTL.
func acquireLock(rec *models.StagedRecord, holderID string, now time.Time, ttl time.Duration) *Error {
	if rec.Lock.Active(now, ttl) && rec.Lock.HolderID != holderID {
		return errLockConflict(rec.Lock.HolderID)
	}
	rec.Lock = &models.Lock{HolderID: holderID, AcquiredAt: now}
	return nil
}

// releaseLock clears the record's lock. Releasing an unlocked record is a
// no-op success. An active lock may only be released by its holder; an
// expired lock may be cleared by anyone.
func releaseLock(rec *models.StagedRecord, holderID string, now time.Time, ttl time.Duration) *Error {
	if rec.Lock == nil {
		return nil
	}
	if rec.Lock.Active(now, ttl) && rec.Lock.HolderID != holderID {
		return errLockConflict(rec.Lock.HolderID)
	}
	rec.Lock = nil
	return nil
}
