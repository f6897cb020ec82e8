package protocol

import "fmt"

// ConfigError indicates a required credential (server URL, auth token) is
// absent at a call site that needs it. Raised at the send/monitor-start
// boundary, never during account resolution.
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("wechat: missing %s", e.Field)
}

// TransportError wraps a network-level failure talking to the gateway.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("wechat %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError indicates the gateway answered, but with malformed JSON or
// a non-success envelope.
type ProtocolError struct {
	Op      string
	Code    int
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("wechat %s: gateway code %d: %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("wechat %s: gateway code %d", e.Op, e.Code)
}
