// Package run orchestrates one build invocation end to end.
//
// A Controller owns at most one live process Handle, drives the output
// queue's single consumer, and walks the lifecycle
// Idle -> Starting -> Running -> Finishing -> Idle, with Cancelling
// reachable from Running. Invoking again while a build runs supersedes
// it: the stale handle is abandoned and any output it produces later is
// discarded by the queue's owner guard, which also terminates the stale
// process.
//
// All display-buffer mutation, error-index rebuilds, and annotation
// updates happen on the controller's single scheduler goroutine. Reader
// goroutines only ever touch the queue, under its one lock. The drain
// applies one chunk per wakeup so a process emitting megabytes of
// output cannot monopolize the scheduler.
package run
