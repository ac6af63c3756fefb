package types

// Websocket: GET /ws?code=<session>&collection=<collection|session>
//
// Server -> Client
// Snapshot:
//   snapshot.collection: string
//   snapshot.version: number // session version when the snapshot was taken
//   snapshot.docs: Doc[]     // full collection, ordered by rank
//                            // (gamePlans by createdAt); absent for "session"
// Pong: {}
// Error:
//   error: string
//
// Client -> Server
// Ping: {}
//
// The first Snapshot arrives right after the upgrade. A client that stops
// reading is dropped and the socket closed.
