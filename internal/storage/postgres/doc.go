// Package postgres holds the SQL repositories.
//
// NOTE: the repositories assume the following tables exist:
//   - tenants, workflows, vendors
//   - events (immutable, UNIQUE (idempotency_key))
//   - incidents (correlated_event_ids and metadata are jsonb)
//   - decisions (immutable append-only)
//   - actions
//   - kill_switches
package postgres
