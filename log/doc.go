// Package log defines the structured logging interface and typed logging
// fields used by the resilience core.
//
// Adapters (such as the zap package) implement Logger so components can keep
// logging calls consistent across backends.
package log
