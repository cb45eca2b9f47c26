// Package sensor turns raw device reads into a complete set of typed readings.
//
// The main components are:
//
//   - [Metric]: one of the five tracked series (two temperatures, humidity,
//     pressure, TVOC)
//   - [Reading]: a normalized value for one metric, tagged ok or fallback
//   - [Result]: the outcome of a single driver call, either a value or a fault
//   - [Reader]: samples every configured device once and isolates failures
//
// A [Reader] never returns an error. Every device fault, readiness miss or
// driver panic is downgraded to a fallback reading with value 0 for the
// affected metrics only, so [Reader.Sample] always yields exactly one reading
// per metric.
package sensor
