// Package zap provides the zap-backed implementation of the log.Logger
// interface, including an OpenTelemetry log bridge and environment-based
// configuration profiles.
package zap
