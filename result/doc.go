/*
Package result wraps one result set returned by a query: ordered column
introspection plus typed extraction into positional rows or name-to-value
maps. The per-column coercion rule is decided once from the declared type
and applied uniformly to every row.
*/
package result
