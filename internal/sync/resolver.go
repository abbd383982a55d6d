package sync

import "github.com/voicefit/voicefit/internal/record"

// Decision is the outcome of conflict resolution for one row.
type Decision int

const (
	// KeepLocal leaves the local row untouched, including its synced flag;
	// pending local changes upload on the next cycle.
	KeepLocal Decision = iota
	// TakeRemote overwrites all payload fields from the remote row.
	TakeRemote
	// InsertNew inserts a row the local store has never seen.
	InsertNew
)

func (d Decision) String() string {
	switch d {
	case KeepLocal:
		return "keep_local"
	case TakeRemote:
		return "take_remote"
	case InsertNew:
		return "insert_new"
	default:
		return "unknown"
	}
}

// Resolve applies last-write-wins over updated_at. Pass nil local for a row
// the local store does not have. Pure and side-effect-free.
//
// Equal timestamps favor local: equality implies the remote row was derived
// from this local one, and favoring local keeps pending uploads winning.
// Between two devices the later wall clock wins; there is no device-id
// tiebreaker, so two devices with identical clocks writing the same row at
// the same millisecond each keep their own version until one writes again.
func Resolve(local, remote record.Row) (record.Row, Decision) {
	if local == nil {
		return remote, InsertNew
	}

	if remote.Env().UpdatedAt > local.Env().UpdatedAt {
		return remote, TakeRemote
	}

	return local, KeepLocal
}
