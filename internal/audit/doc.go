// Package audit persists an append-only trail of privileged mutations.
//
// Records are written by a single background writer. Callers never wait for
// the database unless the queue is full, and a write failure never fails the
// mutation that caused it; it is logged, counted and, after repeated failures,
// alerted.
package audit
