/*
Package largeobject wraps server-side large objects: a stable identifier
plus an optionally open descriptor, scoped to one connection.

Objects start closed, alternate between opened and closed, and end in a
terminal unlinked state reachable only while closed. Descriptors and their
positions are transaction-scoped on the server; callers bracket
large-object work in a transaction via the connection's Query.
*/
package largeobject
