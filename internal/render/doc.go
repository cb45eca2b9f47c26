// Package render turns the latest readings and a history snapshot into the
// dashboard HTML document.
//
// Rendering is a pure function of its inputs: it never samples sensors or
// touches the store, so it can be tested with synthetic snapshots.
package render
