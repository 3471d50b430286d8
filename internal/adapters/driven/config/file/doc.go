// Package file provides TOML-based configuration loading.
//
// Configuration lives in a single config.toml, defaulting to
// ~/.docvec/config.toml. Missing files yield defaults; environment
// variables override secrets so API keys never need to live on disk.
package file
