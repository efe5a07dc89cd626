// Package app assembles the license engine and its local collaborators from
// configuration.
//
// New builds everything the CLIs need: the fingerprint provider, the file
// store, the engine with metrics and the status hub subscribed as an
// observer. Serve and Run additionally expose the engine on the loopback
// HTTP API until the context is cancelled or the process is interrupted.
package app
