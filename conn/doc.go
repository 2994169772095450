/*
Package conn provides the connection wrapper: login with layered parameter
defaults, single-statement execution with result-status dispatch, connection
reset and idempotent close, socket-descriptor retrieval for external
polling, asynchronous-notification retrieval, bulk row insertion, and the
raw copy line interface for driving copy payloads manually.

A Connection owns its client-library handle exclusively and releases it
exactly once. Operations on a closed connection fail with
sdk.ErrNotConnected; the binding never retries anything.
*/
package conn
