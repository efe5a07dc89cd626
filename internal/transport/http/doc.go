// Package http exposes the license engine to a local UI over loopback HTTP.
// It is a presentation bridge only; activation never leaves the machine.
package http
