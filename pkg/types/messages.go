package types

// HTTP (JSON bodies, errors are {code, message}):
//
// POST   /sessions                          {code?}        -> Session
// GET    /sessions/{code}                                  -> Session
// POST   /sessions/{code}/version                          -> {version}
// GET    /sessions/{code}/{collection}                     -> {docs: Doc[]}
// PUT    /sessions/{code}/{collection}/{id}  fields        -> 204
// PATCH  /sessions/{code}/{collection}/{id}  partial       -> 204 | 404 doc_not_found
// DELETE /sessions/{code}/{collection}/{id}                -> 204
// POST   /sessions/{code}/batch              {ops: Op[]}   -> 204 (all or nothing)
//
// collection: "capabilities" | "gamePlans" | "strategies"
//
// Session:
//   code: string (lowercase)
//   version: number
//   createdAt, updatedAt: RFC 3339
//
// Doc:
//   id: string
//   fields: object
//
// Op:
//   kind: "set" | "update" | "delete"
//   collection: string
//   id: string
//   fields: object // omitted for delete
//
// Error codes:
//   session_not_found | session_exists | doc_not_found | bad_collection
//   bad_request | internal
