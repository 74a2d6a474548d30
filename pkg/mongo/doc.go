// Package mongo opens connections to the MongoDB export of the legacy user
// documents, read by the one-time ledger import.
package mongo
