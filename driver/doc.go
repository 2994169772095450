/*
Package driver defines the boundary between the SDK wrappers and the wrapped
PostgreSQL client library.

The Conn interface carries exactly the calls the wrappers marshal onto:
statement execution, raw copy lines, notification draining, connection
lifecycle, attribute passthroughs, and the server-side large-object
functions. PgxConnector provides the production implementation over
pgconn, which operates at nearly the same level as libpq. Tests inject the
drivermock package instead.
*/
package driver
