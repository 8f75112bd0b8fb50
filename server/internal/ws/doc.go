// Package ws implements the WebSocket hub for hrstress-server.
//
// Hub pushes the session summary (the GET /api/v1/summary schema) to every
// connected client: once on connect, on each broadcast tick and right after
// a session is recorded (Notify).
//
//	{"event": "sessions", "seq": 42, "data": {"sessions": [...], "levels": {...}, "generated_at": "..."}}
//
// A client that cannot keep up is disconnected; the gap in seq tells a
// reconnecting client that it missed updates. The server mounts the hub at
// /ws/stream.
package ws
