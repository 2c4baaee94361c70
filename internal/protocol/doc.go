// Package protocol implements the bridge wire format.
//
// The controller client sends UTF-8 JSON objects and the bridge answers each
// one with a JSON object:
//
//	-> {"type": "create_object", "params": {"type": "CUBE", "location": [0, 0, 0]}}
//	<- {"status": "success", "result": {"name": "Cube", ...}}
//
//	-> {"type": "nonexistent_cmd"}
//	<- {"status": "error", "message": "Unknown command type: nonexistent_cmd"}
//
// There is no handshake, heartbeat or message id. Requests and responses are
// correlated by order on the single connection.
//
// # Framing
//
// The default wire has no length prefix or delimiter. A message is complete
// when the whole receive buffer parses as one JSON value (ModeWhole); until
// then the bytes are simply kept. This is lenient towards slow writers but
// cannot separate two messages written back-to-back, so the client must wait
// for each response before sending the next request. ModeStream and
// ModeNewline lift that restriction for clients that opt in.
//
// # Envelope Errors
//
// A complete JSON value that is not an object with a string "type" is
// consumed and reported as an *EnvelopeError, which the server turns into an
// error response. Exceeding the buffer limit returns ErrMessageTooLarge and
// the connection is dropped.
package protocol
