/*
Package db layers a cursor-and-transaction convenience surface over the
connection and result packages: a Session opening a transaction lazily on
the first executed statement and ending it via Commit or Rollback, and a
Cursor with Execute/ExecuteMany, incremental FetchOne/FetchMany/FetchAll,
and pg_type-backed column descriptions.

Bind parameters are quoted client-side and spliced over ? placeholders;
unsupported parameter types fail before any statement reaches the server.
On top of the base column coercion, cursors refine boolean columns to bool
and bytea columns to byte slices.
*/
package db
