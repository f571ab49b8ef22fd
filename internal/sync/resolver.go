package sync

import "github.com/boardpilot/boardpilot/internal/schema"

// Resolve decides what to do with one local/remote pair of dashboards.
//
// A nil remote means the store has no copy: the local one is authoritative
// and must be created remotely - signaled via CreatedRemote, never as a
// conflict. Otherwise the timestamps decide:
//
//   - remote.UpdatedAt equal or older than local: no update needed
//   - remote strictly newer: adopt the remote copy (last writer wins)
//   - remote strictly newer AND the local copy carries its own edits
//     (UpdatedAt after CreatedAt, so it is not a pristine fetch): both
//     sides changed since the last common state - flag a conflict
//
// Clock skew between the two sides is not corrected; the timestamps are
// trusted as given.
func Resolve(local, remote *schema.Dashboard) Resolution {
	if remote == nil {
		return Resolution{CreatedRemote: true}
	}

	if !remote.UpdatedAt.After(local.UpdatedAt) {
		return Resolution{}
	}

	res := Resolution{
		NeedsUpdate: true,
		Remote:      remote,
	}
	if local.HasLocalEdits() {
		res.Conflict = true
	}
	return res
}
