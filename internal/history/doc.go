// Package history records control events to SQLite.
//
// Every event the daemon observes on its application namespace (value
// changes, descriptor changes, element add/remove, TLV touches) can be
// recorded as one row, keyed by the element's textual identity. The log is
// the local audit trail: it survives broker outages and answers "what
// changed, when, and who did it" without external infrastructure.
//
// Retention is bounded by periodic pruning; see HistoryConfig.RetentionDays.
package history
