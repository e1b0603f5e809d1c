// Package middleware contains HTTP middleware for the Fiber application.
//
// # Components
//
//   - auth: API key validation protecting the cache and catalog endpoints.
//   - rayid: assigns every request a unique RayID, stored in the context and
//     echoed in the response headers for tracing.
//
// Register rayid first so every later log line carries the id.
package middleware
