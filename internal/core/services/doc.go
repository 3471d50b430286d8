// Package services contains the core orchestration logic: the
// ingestion pipeline, passage metadata extraction and version-scoped
// retrieval. Services depend only on domain types and driven ports;
// all collaborators are injected through constructors.
package services
