// Package server holds the HTTP server configuration.
//
// The cmd package builds the Fiber app from it: listen address, API key,
// request body limit and graceful shutdown timeout.
package server
