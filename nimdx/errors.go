package nimdx

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrDocNotFound           = errors.New("document not found")
	ErrCasMismatch           = errors.New("cas mismatch")
	ErrNotSupported          = errors.New("not supported")
	ErrCollectionsNotEnabled = fmt.Errorf("collections not enabled: %w", ErrNotSupported)
	ErrDurabilityNotEnabled  = fmt.Errorf("synchronous durability not enabled: %w", ErrNotSupported)
	ErrUnknownScopeName      = errors.New("unknown scope name")
	ErrUnknownCollectionName = errors.New("unknown collection name")
	ErrUnknownCollectionID   = errors.New("unknown collection id")
)

var ErrProtocol = errors.New("protocol error")

type protocolError struct {
	message string
}

func (e protocolError) Error() string {
	return "protocol error: " + e.message
}

func (e protocolError) Unwrap() error {
	return ErrProtocol
}

var ErrInvalidArgument = errors.New("invalid argument")

type invalidArgError struct {
	message string
}

func (e invalidArgError) Error() string {
	return "invalid argument: " + e.message
}

func (e invalidArgError) Unwrap() error {
	return ErrInvalidArgument
}

// ServerError represents an unsuccessful status code returned by the server.
// When the connection negotiated extended errors, the response value may carry
// a JSON blob with additional context which is preserved here verbatim.
type ServerError struct {
	OpCode      OpCode
	Status      Status
	Opaque      uint32
	ContextJson json.RawMessage
}

func (e ServerError) Error() string {
	if len(e.ContextJson) > 0 {
		return fmt.Sprintf("server error: %s, status: %s (context: `%s`)",
			e.OpCode.Name(), e.Status, e.ContextJson)
	}
	return fmt.Sprintf("server error: %s, status: %s", e.OpCode.Name(), e.Status)
}

type serverErrorContextJson struct {
	Error struct {
		Context string `json:"context"`
		Ref     string `json:"ref"`
	} `json:"error"`
}

// ErrorContext returns the human-readable error context the server attached
// to the response.  The second return is false when the response carried no
// extended error information.
func (e ServerError) ErrorContext() (string, bool) {
	parsed, ok := e.parseContext()
	if !ok || parsed.Error.Context == "" {
		return "", false
	}
	return parsed.Error.Context, true
}

// ErrorRef returns the server-side reference identifier for the error.  The
// second return is false when the response carried no extended error
// information.
func (e ServerError) ErrorRef() (string, bool) {
	parsed, ok := e.parseContext()
	if !ok || parsed.Error.Ref == "" {
		return "", false
	}
	return parsed.Error.Ref, true
}

func (e ServerError) parseContext() (serverErrorContextJson, bool) {
	var parsed serverErrorContextJson

	if len(e.ContextJson) == 0 {
		return parsed, false
	}

	err := json.Unmarshal(e.ContextJson, &parsed)
	if err != nil {
		return parsed, false
	}

	return parsed, true
}

// DecodeServerError builds a ServerError from an unsuccessful response
// packet, extracting the extended error context when the datatype marks the
// value as JSON.
func DecodeServerError(resp *Packet) *ServerError {
	e := &ServerError{
		OpCode: resp.OpCode,
		Status: resp.Status,
		Opaque: resp.Opaque,
	}

	if resp.Datatype&uint8(DatatypeFlagJSON) != 0 && len(resp.Value) > 0 {
		e.ContextJson = json.RawMessage(resp.Value)
	}

	return e
}
