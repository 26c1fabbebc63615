// Package grid provides the state behind a paginated, filterable, sortable
// and searchable data grid.
//
// The package holds no rendering code. A caller drives a [Controller] with
// user intents and renders the [Snapshot] it publishes. Everything that
// touches the network goes through a [Source], so the same controller works
// against the HTTP client in package client or an in-process store.
//
// # Modes
//
// In server mode every view change becomes a page request carrying the
// view as query parameters (see [EncodeParams]). In client mode the whole
// collection is fetched once and every view is derived locally by an
// [Engine]. Both paths apply the same rules, so switching modes never
// changes which rows are shown:
//
//   - Filters fail open: a cell that is null or cannot be coerced passes.
//   - Search is a case-insensitive substring match over string columns.
//   - Sorting is stable; uncoercible values order last ascending.
//   - Zero records yield zero pages.
//
// # Fetching
//
// Requests go through an [Orchestrator], which caches pages by
// [ViewState.Key], shares in-flight requests for the same key and never
// caches failures. A failure on the very first load puts the grid in
// [StatusLoadError] with paging disabled until [Controller.Retry]. Any later
// failure raises a notification and rolls the whole view back to the one
// the displayed rows came from:
//
//	initial-loading --ok--> loaded <--> refetching
//	initial-loading --err-> load-error --Retry--> initial-loading
//	refetching      --err-> loaded (rolled back)
//
// A response that arrives after the view has moved on is dropped without a
// notification, even when it failed.
//
// # Input
//
// Search keystrokes are debounced by a [Debouncer] (500ms by default)
// before they reach the view. Filter edits are staged in a [FilterStore]
// and only applied on submit when [Validate] finds no inverted bounds.
//
// # Export
//
// An [Exporter] asks the collection for its CSV export and saves it as
// export_<date>.csv. Exports ignore the current view.
package grid
