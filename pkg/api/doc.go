// Package api holds the wire types shared by the relay's HTTP surface, its
// ledger backends and the websocket progress stream
package api
