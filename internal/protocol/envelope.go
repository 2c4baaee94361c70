package protocol

import (
	"encoding/json"
	"fmt"
)

// Response statuses
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Command is one decoded request from the controller client.
type Command struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// Response is the reply produced for every Command.
//
// A success response always carries "result" (null included); an error
// response always carries "message".
type Response struct {
	Status  string
	Result  any
	Message string
}

// Success wraps a handler result.
func Success(result any) Response {
	return Response{Status: StatusSuccess, Result: result}
}

// Error builds an error response.
func Error(message string) Response {
	return Response{Status: StatusError, Message: message}
}

// Errorf builds an error response from a format string.
func Errorf(format string, args ...any) Response {
	return Error(fmt.Sprintf(format, args...))
}

// UnknownCommand is the reply for a type no handler is registered for.
func UnknownCommand(commandType string) Response {
	return Errorf("Unknown command type: %s", commandType)
}

// OK reports whether the response is a success.
func (r Response) OK() bool {
	return r.Status == StatusSuccess
}

type successWire struct {
	Status string `json:"status"`
	Result any    `json:"result"`
}

type errorWire struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// MarshalJSON implements json.Marshaler
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Status == StatusSuccess {
		return json.Marshal(successWire{Status: r.Status, Result: r.Result})
	}
	status := r.Status
	if status == "" {
		status = StatusError
	}
	return json.Marshal(errorWire{Status: status, Message: r.Message})
}

// UnmarshalJSON implements json.Unmarshaler
func (r *Response) UnmarshalJSON(data []byte) error {
	var wire struct {
		Status  string `json:"status"`
		Result  any    `json:"result"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Status != StatusSuccess && wire.Status != StatusError {
		return fmt.Errorf("invalid response status %q", wire.Status)
	}
	*r = Response{Status: wire.Status, Result: wire.Result, Message: wire.Message}
	return nil
}

// EnvelopeError reports a complete JSON value that is not a valid command.
type EnvelopeError struct {
	Reason string
}

func (e *EnvelopeError) Error() string {
	return "Invalid command: " + e.Reason
}

// commandFromValue validates a decoded JSON value as a command envelope.
func commandFromValue(v any) (*Command, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &EnvelopeError{Reason: fmt.Sprintf("expected a JSON object, got %s", jsonKind(v))}
	}

	rawType, ok := obj["type"]
	if !ok {
		return nil, &EnvelopeError{Reason: "missing \"type\" field"}
	}
	commandType, ok := rawType.(string)
	if !ok {
		return nil, &EnvelopeError{Reason: fmt.Sprintf("\"type\" must be a string, got %s", jsonKind(rawType))}
	}

	cmd := &Command{Type: commandType, Params: map[string]any{}}
	switch params := obj["params"].(type) {
	case nil:
	case map[string]any:
		cmd.Params = params
	default:
		return nil, &EnvelopeError{Reason: fmt.Sprintf("\"params\" must be an object, got %s", jsonKind(params))}
	}
	return cmd, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
