package engine

import "errors"

// ErrState is returned by QueueTarget when a root target (parent == nil)
// is queued after Join has already returned, per spec.md §7's "Post-join
// root enqueue" row. Recursive queueing (parent != nil) remains legal.
var ErrState = errors.New("engine: cannot queue a root target after join has returned")

// ErrAlreadyStarted is returned by Start if called more than once on the
// same Manager.
var ErrAlreadyStarted = errors.New("engine: Start called more than once")
