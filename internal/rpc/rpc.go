package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/libreria/reservation-service/internal/errs"
	"github.com/libreria/reservation-service/internal/model"
)

// Version is the only protocol tag accepted in request envelopes.
const Version = "2.0"

// Error codes. The -32xxx block follows JSON-RPC 2.0; the -320xx codes
// are implementation-defined (the server-error range). The source system
// reported Unauthorized and Internal under one shared code, which made
// them indistinguishable to clients; they are split here.
const (
	CodeParseError      = -32700
	CodeInvalidRequest  = -32600
	CodeMethodNotFound  = -32601
	CodeInvalidParams   = -32602
	CodeInternal        = -32603
	CodeUnauthorized    = -32001
	CodeAlreadyReserved = -32002
)

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type Request struct {
	Version string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id"`
}

type Response struct {
	Result interface{}     `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
	ID     json.RawMessage `json:"id"`
}

type Message struct {
	Message string `json:"message"`
}

// Method enumerates the registered methods. Routing is an exhaustive
// switch over this enum, not a string-keyed map, so a newly added method
// that misses a dispatch arm fails review rather than runtime.
type Method int

const (
	methodUnknown Method = iota
	MethodGetBooks
	MethodReserveBook
	MethodCancelReservation
)

func parseMethod(name string) Method {
	switch name {
	case "getBooks":
		return MethodGetBooks
	case "reserveBook":
		return MethodReserveBook
	case "cancelReservation":
		return MethodCancelReservation
	default:
		return methodUnknown
	}
}

//go:generate go run github.com/golang/mock/mockgen -source=rpc.go -destination=mocks/mock.go -package=mocks

type ReservationService interface {
	ListBooks(ctx context.Context) ([]model.Book, error)
	Reserve(ctx context.Context, bookID, userID int64) error
	Cancel(ctx context.Context, bookID, userID int64) error
}

type Dispatcher struct {
	svc ReservationService
	log *zap.Logger
}

func NewDispatcher(svc ReservationService, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		svc: svc,
		log: log.Named("rpc"),
	}
}

// Dispatch decodes one request envelope and produces exactly one
// response correlated by the request id. Failures of any kind travel in
// the response's error member; Dispatch itself never fails.
func (d *Dispatcher) Dispatch(ctx context.Context, body []byte) Response {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return errResponse(nil, CodeParseError, "Parse error")
	}
	if req.Version != Version || req.Method == "" || emptyID(req.ID) {
		return errResponse(req.ID, CodeInvalidRequest, "Invalid request")
	}

	method := parseMethod(req.Method)
	if method == methodUnknown {
		return errResponse(req.ID, CodeMethodNotFound, "Method not found")
	}

	result, err := d.call(ctx, method, req.Params)
	if err != nil {
		d.log.Debug("method failed",
			zap.String("method", req.Method),
			zap.Error(err))
		return errResponse(req.ID, codeFor(err), messageFor(err))
	}
	return Response{Result: result, ID: req.ID}
}

func (d *Dispatcher) call(ctx context.Context, method Method, params json.RawMessage) (interface{}, error) {
	switch method {
	case MethodGetBooks:
		return d.svc.ListBooks(ctx)
	case MethodReserveBook:
		p, err := bindBookParams(params)
		if err != nil {
			return nil, err
		}
		if err := d.svc.Reserve(ctx, p.BookID, p.UserID); err != nil {
			return nil, err
		}
		return Message{Message: "Book reserved successfully"}, nil
	case MethodCancelReservation:
		p, err := bindBookParams(params)
		if err != nil {
			return nil, err
		}
		if err := d.svc.Cancel(ctx, p.BookID, p.UserID); err != nil {
			return nil, err
		}
		return Message{Message: "Reservation cancelled successfully"}, nil
	default:
		// parseMethod already rejected unknown names.
		return nil, &Error{Code: CodeMethodNotFound, Message: "Method not found"}
	}
}

type bookParams struct {
	BookID int64 `json:"bookId"`
	UserID int64 `json:"userId"`
}

// bindBookParams accepts the keyed form {"bookId":..,"userId":..} or the
// positional form [bookId, userId].
func bindBookParams(raw json.RawMessage) (bookParams, error) {
	invalid := &Error{Code: CodeInvalidParams, Message: "Invalid params"}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return bookParams{}, invalid
	}
	var p bookParams
	switch raw[0] {
	case '{':
		if err := json.Unmarshal(raw, &p); err != nil {
			return bookParams{}, invalid
		}
	case '[':
		var pos []int64
		if err := json.Unmarshal(raw, &pos); err != nil || len(pos) != 2 {
			return bookParams{}, invalid
		}
		p.BookID, p.UserID = pos[0], pos[1]
	default:
		return bookParams{}, invalid
	}
	if p.BookID <= 0 || p.UserID <= 0 {
		return bookParams{}, invalid
	}
	return p, nil
}

func codeFor(err error) int {
	var rpcErr *Error
	switch {
	case errors.As(err, &rpcErr):
		return rpcErr.Code
	case errors.Is(err, errs.ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, errs.ErrAlreadyReserved):
		return CodeAlreadyReserved
	case errors.Is(err, errs.ErrNotFound):
		return CodeInvalidParams
	default:
		return CodeInternal
	}
}

func messageFor(err error) string {
	var rpcErr *Error
	switch {
	case errors.As(err, &rpcErr):
		return rpcErr.Message
	case errors.Is(err, errs.ErrUnauthorized):
		return "Unauthorized action"
	case errors.Is(err, errs.ErrAlreadyReserved):
		return "Book is already reserved"
	case errors.Is(err, errs.ErrNotFound):
		return "Unknown bookId"
	default:
		// Store failures stay opaque to the caller.
		return "Internal error"
	}
}

func errResponse(id json.RawMessage, code int, message string) Response {
	if emptyID(id) {
		id = json.RawMessage("null")
	}
	return Response{Error: &Error{Code: code, Message: message}, ID: id}
}

func emptyID(id json.RawMessage) bool {
	return len(id) == 0 || string(id) == "null"
}
