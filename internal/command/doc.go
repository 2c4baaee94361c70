// Package command resolves command types to handlers and runs them.
//
// A Catalog lists every handler the bridge ships: the status query, the base
// set and the feature-gated conditional sets. NewTable resolves it against
// the enabled Features once; the Dispatcher swaps in a new Table when the
// flags change, so conditional handlers come and go without a restart.
//
// Lookup order is status query, base set, conditional set. Unknown types,
// schema violations, handler errors and handler panics all become error
// responses; the dispatcher itself never fails.
package command
