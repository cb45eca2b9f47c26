// Package sampler runs sampling cycles: one sensor read followed by one
// history record.
//
// This package is internal to envboard. The main components are:
//
//   - [Cycle]: runs a single acquire-then-record pass and keeps the latest result
//   - [Result]: the readings of one cycle plus the snapshot recorded with them
//   - [Scheduler]: runs cycles on a fixed interval in a background goroutine
//
// In request mode the request server calls [Cycle.Run] once per connection.
// In interval mode a [Scheduler] drives [Cycle.Run] and requests render
// [Cycle.Latest] instead. Cycles never overlap, and sensor I/O always
// happens before the store lock is taken.
package sampler
