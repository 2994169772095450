/*
Package drivermock provides an in-memory implementation of the driver
boundary for tests: configurable canned results, statement validators, fail
switches, a pending-notification stack, and a byte-accurate large-object
store. Inject it through the Connector field of a connection Config.
*/
package drivermock
