// Package config holds process-wide configuration: the CLI/env-derived Cli
// struct, the running version string, and a handful of package-level
// tunables that mirror the teacher's convention of exposing a few knobs as
// mutable package vars rather than threading them through every call.
package config

import "time"

var Version = "dev"

// WorkDir is the root of the filesystem layout described in the spec:
// vods/, chats/, finals/ live under it.
var WorkDir = "."

// DispatcherIdlePollInterval is how long the dispatcher sleeps when it finds
// no eligible job.
const DispatcherIdlePollInterval = 30 * time.Second

// LeaseHeartbeatInterval is how often the Lease Keeper refreshes LeasedAtUtc.
const LeaseHeartbeatInterval = 2 * time.Minute

// LeaseStaleAfter is the advisory staleness threshold mentioned in spec.md
// §4.4; not consulted by the single-Dispatcher selector today.
const LeaseStaleAfter = 10 * time.Minute

// ProgressThrottleInterval is the minimum gap between persisted Description
// updates, per spec.md §4.5.
const ProgressThrottleInterval = 2 * time.Second

// MaxConsecutiveFailures is the FailCount threshold at which a job is marked
// permanently failed, per spec.md §4.6.
const MaxConsecutiveFailures = 3
