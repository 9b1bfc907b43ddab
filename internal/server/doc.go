// Package server implements the HTTP API server for the relay
//
// This package provides the webhook callback endpoint, subscription and
// diagnostic REST endpoints, and a WebSocket stream of batch progress
package server
