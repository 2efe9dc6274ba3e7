// Package analytics computes derived statistics over loaded dataset
// tables: per-language request counts and sourcing status, fulfillment
// rate, time-bucketed volume series, priority distribution, and the
// gap analysis over unfulfilled requests.
//
// All operations are pure functions of their table argument. Derived
// results are recomputed on every call; nothing is cached here. Time
// sensitive operations accept an optional *DateRange so callers can
// bound the series without pre-filtering rows.
package analytics
