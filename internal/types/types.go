package types

import (
	"errors"

	"github.com/DoyleJ11/frc-plan-sync/internal/remote"
)

// ClientMessage is what a websocket client may send. Only "Ping" is used;
// anything else gets an Error back.
type ClientMessage struct {
	Type string `json:"type"`
}

type ServerMessage struct {
	Type     string           `json:"type"` // "Snapshot" | "Pong" | "Error"
	Snapshot *remote.Snapshot `json:"snapshot,omitempty"`
	Error    string           `json:"error,omitempty"`
}

const (
	MsgSnapshot = "Snapshot"
	MsgPing     = "Ping"
	MsgPong     = "Pong"
	MsgError    = "Error"
)

type CreateSessionRequest struct {
	Code string `json:"code,omitempty"`
}

type VersionResponse struct {
	Version int64 `json:"version"`
}

type DocsResponse struct {
	Docs []remote.Doc `json:"docs"`
}

type BatchRequest struct {
	Ops []remote.Op `json:"ops"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	CodeSessionNotFound = "session_not_found"
	CodeSessionExists   = "session_exists"
	CodeDocNotFound     = "doc_not_found"
	CodeBadCollection   = "bad_collection"
	CodeBadRequest      = "bad_request"
	CodeInternal        = "internal"
)

var codes = []struct {
	code string
	err  error
}{
	{CodeSessionNotFound, remote.ErrSessionNotFound},
	{CodeSessionExists, remote.ErrSessionExists},
	{CodeDocNotFound, remote.ErrDocNotFound},
	{CodeBadCollection, remote.ErrBadCollection},
	{CodeBadRequest, remote.ErrBadOp},
}

// CodeFor names err on the wire.
func CodeFor(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// ErrorFor turns a wire code back into the sentinel it came from, or nil.
func ErrorFor(code string) error {
	for _, c := range codes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}
