// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): embedding, summarisation, the passage
// store, checkpoint persistence and change detection.
package driven
