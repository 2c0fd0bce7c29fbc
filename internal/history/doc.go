// Package history keeps an optional SQLite log of light transitions.
//
// Repository implements relay.ChangeRecorder: register it with
// relay.AddRecorder and every accepted update is written as one row of the
// light_history table together with the snapshot that was broadcast. The
// table is created by the migrations package.
//
// The log is append-only from the relay's point of view. Old rows are
// removed by Prune, which RunRetention calls on a timer when a retention
// period is configured.
package history
