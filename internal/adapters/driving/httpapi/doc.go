// Package httpapi exposes kbase over a JSON HTTP API.
//
// Routes mirror the driving ports: content registration and listing,
// processing state changes, similarity search and dashboard figures.
// Errors are returned as {"error", "kind", "detail"} with a status code
// derived from the domain error.
package httpapi
