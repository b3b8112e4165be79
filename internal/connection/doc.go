// Package connection carries push streams over WebSocket.
//
// Each text frame holds one JSON value, the same values the chunked HTTP
// stream sends one per line. A Conn satisfies stream.FrameReader, so the
// stream classifier works over either transport. The connection answers
// server pings and sends its own keepalive pings; a connection that goes
// quiet for longer than PingTimeout is reported stale.
package connection
