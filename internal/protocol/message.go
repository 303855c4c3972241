package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Variant discriminators. These are the literal values carried in each
// message's "type" field on the wire.
const (
	KindPing          = "ping"
	KindList          = "list"
	KindCreateSession = "createSession"
	KindAttach        = "attach"
	KindInput         = "input"
	KindResize        = "resize"
	KindKill          = "kill"
	KindDetach        = "detach"

	KindPong     = "pong"
	KindSessions = "sessions"
	KindCreated  = "created"
	KindAttached = "attached"
	KindOutput   = "output"
	KindExit     = "exit"
	KindAck      = "ack"
	KindError    = "error"
)

// Request is implemented by every client→daemon message variant. The
// marker method keeps the set closed: a new variant can only satisfy
// Request by being added to this package, which is where its case in
// DecodeRequest also has to live — the "exhaustive dispatch" shape
// called for in the design notes.
type Request interface {
	requestKind() string
}

// Event is implemented by every daemon→client message variant.
type Event interface {
	eventKind() string
}

// SessionSummary is a flat, externally-visible snapshot of a session,
// used in the Sessions event and nowhere else.
type SessionSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	State        string    `json:"state"`
	Cols         int       `json:"cols"`
	Rows         int       `json:"rows"`
	Shell        string    `json:"shell"`
	Cwd          string    `json:"cwd"`
	Pid          int       `json:"pid"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// --- Requests ---

type PingRequest struct {
	Type string `json:"type"`
}

func NewPingRequest() PingRequest { return PingRequest{Type: KindPing} }
func (PingRequest) requestKind() string { return KindPing }

type ListRequest struct {
	Type string `json:"type"`
}

func NewListRequest() ListRequest { return ListRequest{Type: KindList} }
func (ListRequest) requestKind() string { return KindList }

// CreateSessionRequest asks the daemon to spawn a new PTY session. Every
// field is optional; the daemon fills in configured or hard-coded
// defaults for anything omitted, an empty Name included (see
// internal/registry and internal/session).
type CreateSessionRequest struct {
	Type  string            `json:"type"`
	Name  string            `json:"name,omitempty"`
	Shell string            `json:"shell,omitempty"`
	Cwd   string            `json:"cwd,omitempty"`
	Env   map[string]string `json:"env,omitempty"`
	Cols  int               `json:"cols,omitempty"`
	Rows  int               `json:"rows,omitempty"`
}

func NewCreateSessionRequest(name, shell, cwd string, env map[string]string, cols, rows int) CreateSessionRequest {
	return CreateSessionRequest{
		Type: KindCreateSession, Name: name, Shell: shell, Cwd: cwd, Env: env, Cols: cols, Rows: rows,
	}
}
func (CreateSessionRequest) requestKind() string { return KindCreateSession }

// AttachRequest subscribes the connection to a session's live output and
// triggers a warm-attach replay of its ring buffer tail.
type AttachRequest struct {
	Type     string `json:"type"`
	IDOrName string `json:"idOrName"`
}

func NewAttachRequest(idOrName string) AttachRequest {
	return AttachRequest{Type: KindAttach, IDOrName: idOrName}
}
func (AttachRequest) requestKind() string { return KindAttach }

// InputRequest writes bytes into a session's PTY input handle. Data is
// marshaled as base64 automatically: encoding/json encodes []byte that
// way by default.
type InputRequest struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Data      []byte `json:"data"`
}

func NewInputRequest(sessionID string, data []byte) InputRequest {
	return InputRequest{Type: KindInput, SessionID: sessionID, Data: data}
}
func (InputRequest) requestKind() string { return KindInput }

type ResizeRequest struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Cols      int    `json:"cols"`
	Rows      int    `json:"rows"`
}

func NewResizeRequest(sessionID string, cols, rows int) ResizeRequest {
	return ResizeRequest{Type: KindResize, SessionID: sessionID, Cols: cols, Rows: rows}
}
func (ResizeRequest) requestKind() string { return KindResize }

type KillRequest struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

func NewKillRequest(sessionID string) KillRequest {
	return KillRequest{Type: KindKill, SessionID: sessionID}
}
func (KillRequest) requestKind() string { return KindKill }

// DetachRequest un-registers this connection's listener for one session.
// See DESIGN.md for why the server now acts on SessionID rather than
// ignoring it.
type DetachRequest struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

func NewDetachRequest(sessionID string) DetachRequest {
	return DetachRequest{Type: KindDetach, SessionID: sessionID}
}
func (DetachRequest) requestKind() string { return KindDetach }

// --- Events ---

type PongEvent struct {
	Type       string    `json:"type"`
	ServerTime time.Time `json:"serverTime"`
}

func NewPongEvent(t time.Time) PongEvent { return PongEvent{Type: KindPong, ServerTime: t} }
func (PongEvent) eventKind() string { return KindPong }

type SessionsEvent struct {
	Type     string           `json:"type"`
	Sessions []SessionSummary `json:"sessions"`
}

func NewSessionsEvent(sessions []SessionSummary) SessionsEvent {
	return SessionsEvent{Type: KindSessions, Sessions: sessions}
}
func (SessionsEvent) eventKind() string { return KindSessions }

type CreatedEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

func NewCreatedEvent(sessionID string) CreatedEvent {
	return CreatedEvent{Type: KindCreated, SessionID: sessionID}
}
func (CreatedEvent) eventKind() string { return KindCreated }

type AttachedEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

func NewAttachedEvent(sessionID string) AttachedEvent {
	return AttachedEvent{Type: KindAttached, SessionID: sessionID}
}
func (AttachedEvent) eventKind() string { return KindAttached }

type OutputEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Data      []byte `json:"data"`
}

func NewOutputEvent(sessionID string, data []byte) OutputEvent {
	return OutputEvent{Type: KindOutput, SessionID: sessionID, Data: data}
}
func (OutputEvent) eventKind() string { return KindOutput }

type ExitEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Code      int    `json:"code"`
}

func NewExitEvent(sessionID string, code int) ExitEvent {
	return ExitEvent{Type: KindExit, SessionID: sessionID, Code: code}
}
func (ExitEvent) eventKind() string { return KindExit }

type AckEvent struct {
	Type  string `json:"type"`
	ReqID string `json:"reqId,omitempty"`
}

func NewAckEvent(reqID string) AckEvent { return AckEvent{Type: KindAck, ReqID: reqID} }
func (AckEvent) eventKind() string { return KindAck }

// Error codes used in ErrorEvent.Code.
const (
	ErrorNotFound     = "NOT_FOUND"
	ErrorUnimplemented = "UNIMPLEMENTED"
	// ErrorInternal reports a failure on the daemon's side of an
	// operation that had nothing to do with the session ID/name the
	// client supplied — a full registry, a failed spawn, or a write
	// that failed against a session that does exist. NOT_FOUND is
	// reserved for "no such session".
	ErrorInternal = "INTERNAL"
)

type ErrorEvent struct {
	Type    string `json:"type"`
	ReqID   string `json:"reqId,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorEvent(reqID, code, message string) ErrorEvent {
	return ErrorEvent{Type: KindError, ReqID: reqID, Code: code, Message: message}
}
func (ErrorEvent) eventKind() string { return KindError }

// DecodeRequest inspects raw's "type" field and unmarshals it into the
// matching concrete Request variant. Unknown variants are reported as
// an *UnimplementedVariantError rather than a generic decode error, so
// callers can turn them into an UNIMPLEMENTED event per spec.
func DecodeRequest(raw []byte) (Request, error) {
	var peek struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &peek); err != nil {
		return nil, fmt.Errorf("protocol: peek request type: %w", err)
	}

	switch peek.Type {
	case KindPing:
		var r PingRequest
		return r, unmarshalInto(raw, &r)
	case KindList:
		var r ListRequest
		return r, unmarshalInto(raw, &r)
	case KindCreateSession:
		var r CreateSessionRequest
		return r, unmarshalInto(raw, &r)
	case KindAttach:
		var r AttachRequest
		return r, unmarshalInto(raw, &r)
	case KindInput:
		var r InputRequest
		return r, unmarshalInto(raw, &r)
	case KindResize:
		var r ResizeRequest
		return r, unmarshalInto(raw, &r)
	case KindKill:
		var r KillRequest
		return r, unmarshalInto(raw, &r)
	case KindDetach:
		var r DetachRequest
		return r, unmarshalInto(raw, &r)
	default:
		return nil, &UnimplementedVariantError{Variant: peek.Type}
	}
}

// DecodeEvent is DecodeRequest's mirror image for the client side.
func DecodeEvent(raw []byte) (Event, error) {
	var peek struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &peek); err != nil {
		return nil, fmt.Errorf("protocol: peek event type: %w", err)
	}

	switch peek.Type {
	case KindPong:
		var e PongEvent
		return e, unmarshalInto(raw, &e)
	case KindSessions:
		var e SessionsEvent
		return e, unmarshalInto(raw, &e)
	case KindCreated:
		var e CreatedEvent
		return e, unmarshalInto(raw, &e)
	case KindAttached:
		var e AttachedEvent
		return e, unmarshalInto(raw, &e)
	case KindOutput:
		var e OutputEvent
		return e, unmarshalInto(raw, &e)
	case KindExit:
		var e ExitEvent
		return e, unmarshalInto(raw, &e)
	case KindAck:
		var e AckEvent
		return e, unmarshalInto(raw, &e)
	case KindError:
		var e ErrorEvent
		return e, unmarshalInto(raw, &e)
	default:
		return nil, &UnimplementedVariantError{Variant: peek.Type}
	}
}

func unmarshalInto(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("protocol: decode variant: %w", err)
	}
	return nil
}

// UnimplementedVariantError is returned by DecodeRequest/DecodeEvent when
// the wire "type" field names a variant this package does not know.
type UnimplementedVariantError struct {
	Variant string
}

func (e *UnimplementedVariantError) Error() string {
	return fmt.Sprintf("protocol: %q not implemented", e.Variant)
}

// Encode marshals any Request or Event to its JSON payload bytes, ready
// for WriteFrame.
func Encode(msg any) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode: %w", err)
	}
	return b, nil
}
