package schema

import ps "github.com/faciam-dev/docmeta/pkg/schema"

// MetadataEnvelope wraps definitions keyed by metadata key.
type MetadataEnvelope struct {
	Data ps.Envelope `json:"data"`
}

// MetadataSaved reports a metadata overwrite.
type MetadataSaved struct {
	Key     string `json:"key"`
	Action  string `json:"action"`
	Added   int    `json:"added"`
	Removed int    `json:"removed"`
}

// SnapshotWritten names a snapshot file and where it was written.
type SnapshotWritten struct {
	File string `json:"file"`
	Dest string `json:"dest"`
}
