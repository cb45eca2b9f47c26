// Package store keeps the rolling history of every metric in memory.
//
// This package is internal to envboard and owns the only mutable sampling
// state in the process. The main components are:
//
//   - [History]: a fixed-capacity FIFO ring of float64 samples
//   - [Store]: interface defining record, snapshot and subscription operations
//   - [MemoryStore]: in-memory implementation with one History per metric
//   - [Snapshot]: a deep, point-in-time copy of all buffers
//
// Every buffer is pre-filled with zeros at construction, so each one holds
// exactly its capacity from the start and [MemoryStore.Latest] is always
// defined. A single mutex guards the whole metric set and is held only for
// one push, one record or one snapshot; callers do their sensor I/O before
// calling in.
//
// Subscribers receive a [Snapshot] after every record via buffered channels
// with non-blocking sends; slow subscribers miss updates rather than block
// sampling.
package store
