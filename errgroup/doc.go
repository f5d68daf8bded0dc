// Package errgroup provides a goroutine group with shared cancellation and
// panic recovery. Unlike golang.org/x/sync/errgroup, a panicking goroutine is
// converted into an error instead of crashing the process, which is required
// for background loops that must never take the host down.
package errgroup
