package service

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/draftengine/go/internal/draft/derby"
	"github.com/mcdev12/draftengine/go/internal/models"
	"google.golang.org/protobuf/types/known/structpb"
)

// DerbyServiceName is the fully-qualified name of the derby service.
const DerbyServiceName = "draftengine.draft.v1.DerbyService"

// DerbyApp defines what the service layer needs from the derby application
type DerbyApp interface {
	StartDerby(ctx context.Context, draftID, actorID uuid.UUID) (*models.Derby, error)
	GetDerby(ctx context.Context, draftID uuid.UUID) (*models.Derby, []models.DerbySelection, error)
	ClaimPosition(ctx context.Context, req derby.ClaimPositionRequest) (*models.DerbySelection, error)
	SkipDerbyTurn(ctx context.Context, draftID, actorID uuid.UUID) (*models.DerbySelection, error)
}

// DerbyService implements the derby RPC surface
type DerbyService struct {
	app DerbyApp
}

// NewDerbyService creates a new derby service
func NewDerbyService(app DerbyApp) *DerbyService {
	return &DerbyService{app: app}
}

// Handler returns the path prefix and handler serving every derby procedure.
func (s *DerbyService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mount(mux, DerbyServiceName, map[string]unaryFunc{
		"StartDerby":    s.StartDerby,
		"GetDerby":      s.GetDerby,
		"ClaimPosition": s.ClaimPosition,
		"SkipDerbyTurn": s.SkipDerbyTurn,
	}, opts)
	return "/" + DerbyServiceName + "/", mux
}

// StartDerby opens the draft-position derby
func (s *DerbyService) StartDerby(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	actor, err := actorID(req.Header())
	if err != nil {
		return nil, err
	}
	var ref draftRef
	if err := decode(req.Msg, &ref); err != nil {
		return nil, err
	}
	if err := ref.validate(); err != nil {
		return nil, err
	}
	d, err := s.app.StartDerby(ctx, ref.DraftID, actor)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(map[string]any{"derby": d})
}

// GetDerby returns the derby and its claimed positions
func (s *DerbyService) GetDerby(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	var ref draftRef
	if err := decode(req.Msg, &ref); err != nil {
		return nil, err
	}
	if err := ref.validate(); err != nil {
		return nil, err
	}
	d, selections, err := s.app.GetDerby(ctx, ref.DraftID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(map[string]any{"derby": d, "selections": selections})
}

// ClaimPosition takes a draft position on the caller's derby turn
func (s *DerbyService) ClaimPosition(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	actor, err := actorID(req.Header())
	if err != nil {
		return nil, err
	}
	var appReq derby.ClaimPositionRequest
	if err := decode(req.Msg, &appReq); err != nil {
		return nil, err
	}
	appReq.ActorID = actor

	sel, err := s.app.ClaimPosition(ctx, appReq)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(map[string]any{"selection": sel})
}

// SkipDerbyTurn assigns the current participant the lowest open position
func (s *DerbyService) SkipDerbyTurn(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	actor, err := actorID(req.Header())
	if err != nil {
		return nil, err
	}
	var ref draftRef
	if err := decode(req.Msg, &ref); err != nil {
		return nil, err
	}
	if err := ref.validate(); err != nil {
		return nil, err
	}
	sel, err := s.app.SkipDerbyTurn(ctx, ref.DraftID, actor)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(map[string]any{"selection": sel})
}
