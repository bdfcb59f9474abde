// Package indexsyncerrors provides common error definitions shared across
// the delta-driven index maintenance pipeline.
package indexsyncerrors

import "errors"

var (
	ErrTypeUnknown             = errors.New("indexsync: unknown type definition")
	ErrIndexUnknown            = errors.New("indexsync: unknown index")
	ErrUnsupportedPropertyKind = errors.New("indexsync: unsupported property kind")

	ErrTransport    = errors.New("indexsync: triplestore transport error")
	ErrQuery        = errors.New("indexsync: triplestore rejected query")
	ErrAuth         = errors.New("indexsync: missing or invalid authorization scope")
	ErrNotFound     = errors.New("indexsync: search engine document not found")
	ErrMergeConflict = errors.New("indexsync: smart-merge conflict")
	ErrExtractor    = errors.New("indexsync: text extraction failed")
	ErrConfig       = errors.New("indexsync: invalid configuration")

	ErrQueueClosed = errors.New("indexsync: update queue is closed")
)
