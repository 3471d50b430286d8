package domain

// ChangeType represents the kind of file change between ingestion runs.
type ChangeType int

const (
	// ChangeAdded indicates a file not seen in the previous run.
	ChangeAdded ChangeType = iota

	// ChangeModified indicates a file whose content changed.
	ChangeModified

	// ChangeRemoved indicates a file that no longer exists.
	ChangeRemoved
)

// String returns the change type name for logging.
func (t ChangeType) String() string {
	switch t {
	case ChangeAdded:
		return "added"
	case ChangeModified:
		return "modified"
	case ChangeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// FileChange represents one entry of an incremental worklist.
type FileChange struct {
	// Path is the absolute path of the affected file.
	Path string

	// Type is the kind of change.
	Type ChangeType
}
