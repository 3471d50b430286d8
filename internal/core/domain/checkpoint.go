package domain

// Checkpoint records which source files have been fully ingested,
// keyed by version string (e.g. "16.0"). It is process-local state,
// mutated only between file completions and persisted after every
// committed file so a crash loses at most the in-flight file.
type Checkpoint map[string]map[string]struct{}

// NewCheckpoint returns an empty checkpoint.
func NewCheckpoint() Checkpoint {
	return make(Checkpoint)
}

// Done reports whether the file was committed for the version.
func (c Checkpoint) Done(version, path string) bool {
	files, ok := c[version]
	if !ok {
		return false
	}
	_, ok = files[path]
	return ok
}

// MarkDone records the file as committed for the version.
func (c Checkpoint) MarkDone(version, path string) {
	files, ok := c[version]
	if !ok {
		files = make(map[string]struct{})
		c[version] = files
	}
	files[path] = struct{}{}
}

// Files returns the committed file paths for a version. The returned
// slice is a copy in unspecified order.
func (c Checkpoint) Files(version string) []string {
	files, ok := c[version]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(files))
	for path := range files {
		out = append(out, path)
	}
	return out
}
