// Package domain contains the core business entities for docvec:
// passages, their metadata, ingestion checkpoints and change events.
// It has no dependencies on adapters or infrastructure.
package domain
