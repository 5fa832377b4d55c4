// Package podfs is a client for the file service of a paired handheld
// device, reached over a framed binary protocol on an
// already-established byte stream.
//
// Ownership boundary:
// - remote path value type and entry snapshots
// - protocol client: one connection, one request in flight
// - open-file handles with stream semantics
// - text decoding/encoding adapters
//
// A Client and everything opened from it belong to one goroutine;
// callers needing shared access must serialize around the Client.
package podfs
