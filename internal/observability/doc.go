// Package observability provides the domain event log, metrics derived from
// it, and the diagnostic logger for Copilot. Events are persisted as JSON
// Lines so they can be tailed and grepped; metrics are computed on demand.
package observability
