// Package wire owns the framed request/response protocol spoken to the
// device file service.
//
// Ownership boundary:
// - frame/header primitives
// - operation code table
// - payload encode/decode primitives
// - single-in-flight request correlation
package wire
