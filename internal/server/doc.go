// Package server provides the local HTTP plumbing for CLI OAuth flows.
//
// When the user runs `tunebridge spotify auth`, a temporary HTTP server starts
// on the configured address, receives the authorization callback, exchanges
// the code through the Spotify client, and shuts down. The [CallbackHandler]
// validates the state parameter (CSRF protection) and processes at most one
// callback.
//
// The [Router] interface and [BasicRouter] implementation wrap [http.ServeMux]
// with middleware support so additional handlers can be registered without
// pulling in a routing framework.
package server
