// Package sessiontrack is the admin backend for the timed multi-room
// team activity: session creation, per-room elapsed times, solution
// time, aggregate totals and pending-queue ordering, served over a
// small JSON HTTP API and persisted in a partitioned table store.
package sessiontrack

// Version is the current release version.
const Version = "0.1.0"
