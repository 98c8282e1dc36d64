// Package repositories provides the persistence layer for the vidmark CLI.
//
// [WatchRepository] stores the last known snapshot per watched job in SQLite.
// The realtime client's in-memory store stays authoritative while the process
// runs; the repository exists so a restarted client can seed its watched set
// and gap-recovery low-water marks from the previous run.
package repositories
