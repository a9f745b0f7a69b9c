// Package service exposes the draft engine as connect RPC services.
//
// Messages are google.protobuf.Struct values whose fields mirror the JSON form of the engine's
// request and model types. The acting user is taken from the X-Actor-ID header.
package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ActorHeader carries the id of the user making the request.
const ActorHeader = "X-Actor-ID"

func procedure(service, method string) string {
	return "/" + service + "/" + method
}

// decode copies the fields of msg into v through their JSON form.
func decode(msg *structpb.Struct, v any) error {
	if msg == nil {
		msg = &structpb.Struct{}
	}
	data, err := protojson.Marshal(msg)
	if err != nil {
		return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("failed to read request: %w", err))
	}
	if err := json.Unmarshal(data, v); err != nil {
		return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("malformed request: %w", err))
	}
	return nil
}

// respond wraps fields in a Struct response.
func respond(fields map[string]any) (*connect.Response[structpb.Struct], error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("failed to encode response: %w", err))
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("failed to encode response: %w", err))
	}
	return connect.NewResponse(out), nil
}

func actorID(h http.Header) (uuid.UUID, error) {
	raw := h.Get(ActorHeader)
	if raw == "" {
		return uuid.Nil, connect.NewError(connect.CodeUnauthenticated, errors.New("missing "+ActorHeader+" header"))
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, connect.NewError(connect.CodeUnauthenticated, fmt.Errorf("invalid %s header", ActorHeader))
	}
	return id, nil
}

// draftRef is the body of requests that only name a draft.
type draftRef struct {
	DraftID uuid.UUID `json:"draft_id"`
}

func (r draftRef) validate() error {
	if r.DraftID == uuid.Nil {
		return connect.NewError(connect.CodeInvalidArgument, errors.New("draft_id is required"))
	}
	return nil
}
