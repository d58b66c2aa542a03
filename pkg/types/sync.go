// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// RemoteStatus classifies a cache key against the Zotero library. It is
// derived on every listing and never stored.
type RemoteStatus int

const (
	// RemoteNoItem means the parent item is absent from Zotero.
	RemoteNoItem RemoteStatus = iota
	// RemoteNoBackup means the parent item exists but has no backup bundle.
	RemoteNoBackup
	// RemoteOK means a backup bundle attachment exists.
	RemoteOK
)

func (s RemoteStatus) String() string {
	switch s {
	case RemoteOK:
		return "ok"
	case RemoteNoBackup:
		return "no_backup"
	default:
		return "no_item"
	}
}

// MarshalText implements encoding.TextMarshaler so JSON and YAML reports
// carry the status name.
func (s RemoteStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SyncDirection names the side a transfer writes to.
type SyncDirection string

const (
	DirectionUpload   SyncDirection = "upload"
	DirectionDownload SyncDirection = "download"
)

// SyncOutcome is the per-key result of an upload or download run.
type SyncOutcome string

const (
	OutcomeDone      SyncOutcome = "done"
	OutcomeSkipped   SyncOutcome = "skipped"
	OutcomeFailed    SyncOutcome = "failed"
	OutcomeWouldDo   SyncOutcome = "would_proceed"
	OutcomeWouldSkip SyncOutcome = "would_skip"
)
