// Package perm decides who may work on a record's draft.
//
// A draft acts as an edit lock: while one user has a draft open, other users
// cannot load or change the record. A lock that has been idle longer than the
// grace period may be taken over.
package perm

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const EnvLockGrace = "BIBEDIT_LOCK_GRACE_SECONDS"

// LockGrace is the idle time after which a draft lock lapses. Default 1 hour.
// Override with BIBEDIT_LOCK_GRACE_SECONDS.
func LockGrace() time.Duration {
	if s := os.Getenv(EnvLockGrace); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			return time.Duration(n) * time.Second
		}
	}
	return time.Hour
}

// Lock is the owner of an open draft and when it was last touched.
type Lock struct {
	Owner     string
	UpdatedAt time.Time
}

// CanEditDraft reports whether owner may work on a record whose draft holds
// lock. A nil lock means no draft is open.
//
// Rules:
//   - Anyone can open a record without a draft.
//   - The lock owner can always continue.
//   - Others can take over once the lock has been idle longer than grace.
func CanEditDraft(lock *Lock, owner string, now time.Time, grace time.Duration) bool {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return false
	}
	if lock == nil || strings.TrimSpace(lock.Owner) == "" {
		return true
	}
	if lock.Owner == owner {
		return true
	}
	return now.Sub(lock.UpdatedAt) > grace
}

// LockedError reports a record whose draft belongs to someone else.
type LockedError struct {
	RecID int
	Owner string
}

func (e LockedError) Error() string {
	return fmt.Sprintf("Record %d is being edited by %s", e.RecID, e.Owner)
}
