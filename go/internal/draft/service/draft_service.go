package service

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/draftengine/go/internal/draft/chesstimer"
	"github.com/mcdev12/draftengine/go/internal/draft/draft"
	"github.com/mcdev12/draftengine/go/internal/draft/pick"
	"github.com/mcdev12/draftengine/go/internal/models"
	"google.golang.org/protobuf/types/known/structpb"
)

// DraftServiceName is the fully-qualified name of the draft service.
const DraftServiceName = "draftengine.draft.v1.DraftService"

// DraftApp defines what the service layer needs from the draft application
type DraftApp interface {
	CreateDraft(ctx context.Context, req draft.CreateDraftRequest) (*models.Draft, error)
	GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error)
	GetTurnOrder(ctx context.Context, id uuid.UUID) (models.TurnOrder, error)
	ListPicks(ctx context.Context, id uuid.UUID) ([]models.DraftPick, error)
	SetTurnOrder(ctx context.Context, req draft.SetTurnOrderRequest) (models.TurnOrder, error)
	StartDraft(ctx context.Context, draftID, actorID uuid.UUID) (*models.Draft, error)
	PauseDraft(ctx context.Context, draftID, actorID uuid.UUID) (*models.Draft, error)
	ResumeDraft(ctx context.Context, draftID, actorID uuid.UUID) (*models.Draft, error)
	SetAutodraft(ctx context.Context, req draft.SetAutodraftRequest) (*models.TurnOrderEntry, error)
	AdjustTime(ctx context.Context, req draft.AdjustTimeRequest) (*models.TurnOrderEntry, error)
	GetTimeBudgets(ctx context.Context, draftID uuid.UUID) ([]chesstimer.Budget, error)
}

// PickApp defines what the service layer needs from the pick application
type PickApp interface {
	MakePick(ctx context.Context, req pick.MakePickRequest) (*pick.PickResult, error)
	SkipPick(ctx context.Context, req pick.SkipPickRequest) (*pick.PickResult, error)
	ListAvailablePlayers(ctx context.Context, draftID uuid.UUID, limit int) ([]models.Player, error)
}

// DraftService implements the draft RPC surface
type DraftService struct {
	drafts DraftApp
	picks  PickApp
}

// NewDraftService creates a new draft service
func NewDraftService(drafts DraftApp, picks PickApp) *DraftService {
	return &DraftService{drafts: drafts, picks: picks}
}

type unaryFunc func(context.Context, *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error)

func mount(mux *http.ServeMux, service string, methods map[string]unaryFunc, opts []connect.HandlerOption) {
	for name, fn := range methods {
		path := procedure(service, name)
		mux.Handle(path, connect.NewUnaryHandler(path, fn, opts...))
	}
}

// Handler returns the path prefix and handler serving every draft procedure.
func (s *DraftService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mount(mux, DraftServiceName, map[string]unaryFunc{
		"CreateDraft":          s.CreateDraft,
		"GetDraft":             s.GetDraft,
		"SetTurnOrder":         s.SetTurnOrder,
		"StartDraft":           s.StartDraft,
		"PauseDraft":           s.PauseDraft,
		"ResumeDraft":          s.ResumeDraft,
		"MakePick":             s.MakePick,
		"SkipPick":             s.SkipPick,
		"SetAutodraft":         s.SetAutodraft,
		"AdjustTime":           s.AdjustTime,
		"GetTimeBudgets":       s.GetTimeBudgets,
		"ListPicks":            s.ListPicks,
		"ListAvailablePlayers": s.ListAvailablePlayers,
	}, opts)
	return "/" + DraftServiceName + "/", mux
}

// CreateDraft creates a new draft
func (s *DraftService) CreateDraft(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	actor, err := actorID(req.Header())
	if err != nil {
		return nil, err
	}
	var appReq draft.CreateDraftRequest
	if err := decode(req.Msg, &appReq); err != nil {
		return nil, err
	}
	appReq.ActorID = actor

	d, err := s.drafts.CreateDraft(ctx, appReq)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(map[string]any{"draft": d})
}

// GetDraft returns a draft with its turn order
func (s *DraftService) GetDraft(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	ref, err := s.ref(req)
	if err != nil {
		return nil, err
	}
	d, err := s.drafts.GetDraft(ctx, ref.DraftID)
	if err != nil {
		return nil, toConnectError(err)
	}
	o, err := s.drafts.GetTurnOrder(ctx, ref.DraftID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(map[string]any{"draft": d, "turn_order": o})
}

// SetTurnOrder assigns draft positions before the draft starts
func (s *DraftService) SetTurnOrder(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	actor, err := actorID(req.Header())
	if err != nil {
		return nil, err
	}
	var appReq draft.SetTurnOrderRequest
	if err := decode(req.Msg, &appReq); err != nil {
		return nil, err
	}
	appReq.ActorID = actor

	o, err := s.drafts.SetTurnOrder(ctx, appReq)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(map[string]any{"turn_order": o})
}

// StartDraft moves a draft into progress
func (s *DraftService) StartDraft(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	return s.transition(ctx, req, s.drafts.StartDraft)
}

// PauseDraft pauses a draft in progress
func (s *DraftService) PauseDraft(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	return s.transition(ctx, req, s.drafts.PauseDraft)
}

// ResumeDraft resumes a paused draft
func (s *DraftService) ResumeDraft(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	return s.transition(ctx, req, s.drafts.ResumeDraft)
}

func (s *DraftService) transition(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
	fn func(ctx context.Context, draftID, actorID uuid.UUID) (*models.Draft, error),
) (*connect.Response[structpb.Struct], error) {
	actor, err := actorID(req.Header())
	if err != nil {
		return nil, err
	}
	ref, err := s.ref(req)
	if err != nil {
		return nil, err
	}
	d, err := fn(ctx, ref.DraftID, actor)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(map[string]any{"draft": d})
}

// MakePick submits the turn holder's selection
func (s *DraftService) MakePick(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	actor, err := actorID(req.Header())
	if err != nil {
		return nil, err
	}
	var appReq pick.MakePickRequest
	if err := decode(req.Msg, &appReq); err != nil {
		return nil, err
	}
	appReq.ActorID = actor
	// Only the monitor makes auto picks.
	appReq.IsAutoPick = false

	res, err := s.picks.MakePick(ctx, appReq)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(map[string]any{"pick": res.Pick, "draft": res.Draft, "completed": res.Completed})
}

// SkipPick lets the commissioner pass the current turn
func (s *DraftService) SkipPick(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	actor, err := actorID(req.Header())
	if err != nil {
		return nil, err
	}
	var appReq pick.SkipPickRequest
	if err := decode(req.Msg, &appReq); err != nil {
		return nil, err
	}
	appReq.ActorID = actor

	res, err := s.picks.SkipPick(ctx, appReq)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(map[string]any{"pick": res.Pick, "draft": res.Draft, "completed": res.Completed})
}

// SetAutodraft toggles a participant's autodraft flag
func (s *DraftService) SetAutodraft(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	actor, err := actorID(req.Header())
	if err != nil {
		return nil, err
	}
	var appReq draft.SetAutodraftRequest
	if err := decode(req.Msg, &appReq); err != nil {
		return nil, err
	}
	appReq.ActorID = actor

	entry, err := s.drafts.SetAutodraft(ctx, appReq)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(map[string]any{"entry": entry})
}

// AdjustTime changes a participant's chess budget
func (s *DraftService) AdjustTime(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	actor, err := actorID(req.Header())
	if err != nil {
		return nil, err
	}
	var appReq draft.AdjustTimeRequest
	if err := decode(req.Msg, &appReq); err != nil {
		return nil, err
	}
	appReq.ActorID = actor

	entry, err := s.drafts.AdjustTime(ctx, appReq)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(map[string]any{"entry": entry})
}

// GetTimeBudgets returns each participant's chess budget
func (s *DraftService) GetTimeBudgets(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	ref, err := s.ref(req)
	if err != nil {
		return nil, err
	}
	budgets, err := s.drafts.GetTimeBudgets(ctx, ref.DraftID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(map[string]any{"budgets": budgets})
}

// ListPicks returns the draft board in pick order
func (s *DraftService) ListPicks(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	ref, err := s.ref(req)
	if err != nil {
		return nil, err
	}
	picks, err := s.drafts.ListPicks(ctx, ref.DraftID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(map[string]any{"picks": picks})
}

// ListAvailablePlayers returns undrafted players, best rank first
func (s *DraftService) ListAvailablePlayers(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	var body struct {
		DraftID uuid.UUID `json:"draft_id"`
		Limit   int       `json:"limit"`
	}
	if err := decode(req.Msg, &body); err != nil {
		return nil, err
	}
	if err := (draftRef{DraftID: body.DraftID}).validate(); err != nil {
		return nil, err
	}
	if body.Limit < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("limit must not be negative"))
	}
	players, err := s.picks.ListAvailablePlayers(ctx, body.DraftID, body.Limit)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(map[string]any{"players": players})
}

func (s *DraftService) ref(req *connect.Request[structpb.Struct]) (draftRef, error) {
	var ref draftRef
	if err := decode(req.Msg, &ref); err != nil {
		return ref, err
	}
	return ref, ref.validate()
}
