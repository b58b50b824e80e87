// Package events defines the dispatch related events emitted on the event bus.
//
// Available event types:
//   - RunEvent: an optimization run finished, with a plan or an error
//   - MarginEvent: a marginal cost snapshot was computed for a site
package events
