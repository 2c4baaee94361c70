// Package client is a minimal controller for the bridge wire protocol. It
// keeps one request outstanding at a time, which is what the default framing
// requires.
//
// Client is used by the send and console commands of trellis-bridge and
// by end-to-end tests that drive a running server.
package client
