package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// AuthError is returned for any 401 response. The session must be torn down.
type AuthError struct {
	Op     string
	Detail string
}

func (e *AuthError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: unauthorized: %s", e.Op, e.Detail)
	}
	return e.Op + ": unauthorized"
}

// ValidationError is a non-401 4xx carrying the server's detail message.
type ValidationError struct {
	Op     string
	Status int
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Detail, e.Status)
}

// NetworkError covers transport failures, 5xx responses and bodies that
// could not be decoded.
type NetworkError struct {
	Op     string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: server returned status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindAuth
	KindValidation
	KindNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	default:
		return "network"
	}
}

// Classify maps any error onto the taxonomy. Unrecognised errors are
// treated as network failures.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return KindAuth
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}
	return KindNetwork
}

const (
	MsgSessionExpired = "session expired, please log in again"
	MsgRequestFailed  = "request failed, please try again"
)

// UserMessage returns the text shown to the user for err: the server detail
// for validation errors and a fixed message otherwise.
func UserMessage(err error) string {
	var ve *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return ve.Detail
	case Classify(err) == KindAuth:
		return MsgSessionExpired
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return MsgRequestFailed
	}
}

// parseDetail extracts FastAPI's "detail" field, which is either a string or
// a list of {loc, msg} objects.
func parseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}

	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if field := lastLoc(it.Loc); field != "" {
				msgs = append(msgs, field+": "+it.Msg)
			} else {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return string(envelope.Detail)
}

func lastLoc(loc []any) string {
	if len(loc) == 0 {
		return ""
	}
	if s, ok := loc[len(loc)-1].(string); ok {
		return s
	}
	return ""
}
