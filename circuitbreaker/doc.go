// Package circuitbreaker implements per-dependency failure isolation for
// external services (LLM providers, ad-platform APIs).
//
// State transitions:
//
//	Closed   -> Open      when rolling-window failures >= FailureThreshold
//	                      and total requests >= MinThroughput
//	Open     -> HalfOpen  after the current backoff timeout elapses
//	HalfOpen -> Closed    when SuccessThreshold consecutive successes occur
//	HalfOpen -> Open      on any failure (backoff timeout grows, capped)
//
// Breakers are obtained through a Registry so every caller referencing the
// same logical dependency shares one breaker and one set of metrics.
package circuitbreaker
