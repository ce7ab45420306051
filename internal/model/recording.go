// Package model defines the domain types shared across the sync pipeline.
package model

import "time"

// Unknown is the sentinel for an identity value that could not be resolved.
// It is rendered as "UNKNOWN" in storage keys.
const Unknown = "unknown"

// CallRecording is one physical audio file discovered under the archive tree.
// Identity is the absolute path; recordings are never mutated or deleted by
// this system.
type CallRecording struct {
	// Path is the absolute, cleaned filesystem path.
	Path string
	// CallID is the canonical 36-character call identifier parsed from the
	// filename stem.
	CallID string
	// Ext is the file extension including the leading dot, lowercased.
	Ext string
	// Size is the byte size at scan time.
	Size int64
	// ModTime is the file modification time.
	ModTime time.Time
	// Duration is the probed audio duration in seconds (0 if unreadable).
	Duration float64
	// Date is the calendar date of the containing archive day folder.
	Date time.Time
}
