// Package server implements the network edges of the chat service.
//
// The TCP listener feeds raw line-framed connections into the chat hub, while
// the HTTP side carries the WebSocket gateway, the health check and the
// Prometheus endpoint. Configuration, origin checks and routing live in their
// own files.
package server
