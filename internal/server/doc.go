// Package server implements the dashboard's request server.
//
// The server speaks just enough HTTP/1.0 for a browser: it accepts a TCP
// connection, reads (and ignores) the request, asks its [PageFunc] for a body,
// writes a fixed status line and content type followed by the body, and closes
// the connection. Connections are handled one at a time on the accept loop.
//
// Every connection produces a [ConnResult]. A failed connection is logged and
// abandoned; the loop keeps accepting. Only cancelling the context passed to
// [Server.Start] or [Server.Serve] stops it.
package server
