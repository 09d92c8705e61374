// Package turn runs one player turn end to end: load state, honor debug
// commands, ask the narrator, reconcile its proposal, and persist.
package turn

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/cory-johannsen/chronicle/internal/errors"
	"github.com/cory-johannsen/chronicle/internal/game/combat"
	"github.com/cory-johannsen/chronicle/internal/game/discrepancy"
	"github.com/cory-johannsen/chronicle/internal/game/entity"
	"github.com/cory-johannsen/chronicle/internal/game/merge"
	"github.com/cory-johannsen/chronicle/internal/game/npc"
	"github.com/cory-johannsen/chronicle/internal/game/numeric"
	"github.com/cory-johannsen/chronicle/internal/game/state"
	"github.com/cory-johannsen/chronicle/internal/game/tier"
	"github.com/cory-johannsen/chronicle/internal/llm"
	"github.com/cory-johannsen/chronicle/internal/observability"
	"github.com/cory-johannsen/chronicle/internal/storage/postgres"
)

// DefaultStoryContext is how many recent story entries the narrator sees.
const DefaultStoryContext = 20

// Store persists campaigns. *postgres.CampaignRepository satisfies it.
type Store interface {
	CreateCampaign(ctx context.Context, id string, doc map[string]any) (state.Snapshot, error)
	GetState(ctx context.Context, id string) (state.Snapshot, error)
	PutState(ctx context.Context, id string, doc map[string]any, corrections []string, expectedVersion int64) (int64, error)
	RecentStory(ctx context.Context, id string, limit int) ([]state.StoryEntry, error)
	CommitTurn(ctx context.Context, c postgres.TurnCommit) (int64, error)
}

// ActionRequest is one player input against a campaign.
type ActionRequest struct {
	CampaignID string
	Input      string
	// Mode defaults to character when empty.
	Mode state.Mode
}

// Option configures a Service.
type Option func(*Service)

// WithStoryContext sets how many recent story entries the narrator sees.
func WithStoryContext(n int) Option {
	return func(s *Service) { s.storyContext = n }
}

// WithProduction hides internal error text from failed turn responses.
func WithProduction(production bool) Option {
	return func(s *Service) { s.production = production }
}

// WithClock replaces the wall clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service orchestrates turns. It is safe for concurrent use; turns against the
// same campaign run one at a time.
type Service struct {
	store     Store
	narrator  llm.Client
	converter *numeric.Converter
	validator *entity.Validator
	cleaner   *combat.Cleaner
	detector  *discrepancy.Detector
	evaluator *tier.Evaluator
	templates []*npc.Template
	logger    *zap.Logger

	locks        *campaignLocks
	storyContext int
	production   bool
	now          func() time.Time
}

// NewService creates a Service.
//
// Precondition: every collaborator must be non-nil; templates may be empty.
func NewService(
	store Store,
	narrator llm.Client,
	converter *numeric.Converter,
	validator *entity.Validator,
	cleaner *combat.Cleaner,
	detector *discrepancy.Detector,
	evaluator *tier.Evaluator,
	templates []*npc.Template,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		store:        store,
		narrator:     narrator,
		converter:    converter,
		validator:    validator,
		cleaner:      cleaner,
		detector:     detector,
		evaluator:    evaluator,
		templates:    templates,
		logger:       logger,
		locks:        newCampaignLocks(),
		storyContext: DefaultStoryContext,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Production reports whether the service hides internal error text.
func (s *Service) Production() bool {
	return s.production
}

// ProcessAction runs one turn.
//
// Debug commands are answered without calling the narrator. Any other input is
// sent to the narrator, its proposal is reconciled into state, and the turn is
// committed atomically with its story entries.
//
// Precondition: req.CampaignID and req.Input must be non-empty.
// Postcondition: On error nothing was written. Errors carry an apperrors code.
func (s *Service) ProcessAction(ctx context.Context, req ActionRequest) (*Response, error) {
	if strings.TrimSpace(req.CampaignID) == "" {
		return nil, apperrors.New(apperrors.CodeCampaignIDEmpty, "campaign id must not be empty")
	}
	input := strings.TrimSpace(req.Input)
	if input == "" {
		return nil, apperrors.New(apperrors.CodeTurnInputEmpty, "input must not be empty")
	}
	mode, ok := state.ParseMode(string(req.Mode))
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeTurnModeInvalid, "unknown mode %q", req.Mode)
	}
	log := observability.ForTurn(s.logger, req.CampaignID, string(mode))

	release, err := s.locks.acquire(ctx, req.CampaignID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeTurnInterrupted, "turn cancelled while waiting for the campaign", err)
	}
	defer release()

	snap, err := s.load(ctx, req.CampaignID)
	if err != nil {
		return nil, err
	}

	outcome, err := s.dispatch(ctx, snap, input, log)
	if err != nil {
		return nil, err
	}
	switch o := outcome.(type) {
	case Handled:
		return o.Response, nil
	case NotMatched:
		if mode == state.ModeGod {
			return nil, apperrors.Newf(apperrors.CodeInvalidCommand,
				"god mode accepts only %s, %s, or %s", CommandAskState, CommandSet, CommandUpdateState)
		}
	}
	return s.play(ctx, snap, input, mode, log)
}

// play sends input to the narrator and commits the reconciled result.
func (s *Service) play(ctx context.Context, snap state.Snapshot, input string, mode state.Mode, log *zap.Logger) (*Response, error) {
	story, err := s.store.RecentStory(ctx, snap.CampaignID, s.storyContext)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageFailure, "loading story context", err)
	}

	reply, err := s.narrator.Generate(ctx, llm.Request{
		CampaignID:        snap.CampaignID,
		Mode:              mode,
		CurrentInput:      input,
		StoryContext:      llm.StoryLines(story),
		GameState:         snap.State,
		SystemCorrections: snap.PendingCorrections,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Wrap(apperrors.CodeTurnInterrupted, "turn cancelled while the narrator was responding", err)
		}
		return nil, apperrors.Wrap(apperrors.CodeLLMFailure, "the narrator is unavailable; nothing was changed", err)
	}

	now := s.now()
	userSeq := snap.LastSequenceID + 1
	narratorSeq := userSeq + 1
	rec := s.reconcile(snap.CampaignID, snap.State, reply.StateUpdates, mode, narratorSeq, now, log)

	scenes := snap.SceneCount
	if mode == state.ModeCharacter {
		scenes++
	}

	fields := map[string]any{}
	if len(rec.Applied) > 0 {
		fields["state_updates"] = rec.Applied
	}
	if len(reply.Debug) > 0 {
		fields["debug_info"] = reply.Debug
	}
	if len(rec.Removed) > 0 {
		fields["removed_enemies"] = rec.Removed
	}
	entries := []state.StoryEntry{
		{ID: uuid.New(), SequenceID: userSeq, Actor: state.ActorUser, Text: input, Mode: mode, CreatedAt: now},
		{ID: uuid.New(), SequenceID: narratorSeq, Actor: state.ActorNarrator, Text: reply.Narrative, Mode: mode, Fields: fields, CreatedAt: now},
	}

	if _, err := s.store.CommitTurn(ctx, postgres.TurnCommit{
		CampaignID:         snap.CampaignID,
		ExpectedVersion:    snap.Version,
		State:              rec.State,
		Entries:            entries,
		LastSequenceID:     narratorSeq,
		SceneCount:         scenes,
		PendingCorrections: rec.Corrections,
	}); err != nil {
		return nil, persistError(snap.CampaignID, err)
	}

	debug := state.DebugMode(rec.State)
	resp := &Response{
		Success:           true,
		Narrative:         reply.Narrative,
		GameState:         rec.State,
		SequenceID:        narratorSeq,
		UserSceneNumber:   scenes,
		SystemCorrections: rec.Corrections,
		DebugMode:         debug,
		PendingUpgrade:    s.evaluator.PendingUpgradeType(rec.State),
		RemovedEnemies:    rec.Removed,
	}
	if debug {
		resp.StateUpdates = rec.Applied
	}

	log.Info("turn completed",
		zap.Int("sequence_id", narratorSeq),
		zap.Int("corrections", len(rec.Corrections)),
		zap.Strings("removed", rec.Removed),
	)
	return resp, nil
}

// dispatch offers input to the debug command handlers.
func (s *Service) dispatch(ctx context.Context, snap state.Snapshot, input string, log *zap.Logger) (Outcome, error) {
	cmd, ok := ParseCommand(input)
	if !ok {
		return NotMatched{}, nil
	}
	if !state.DebugMode(snap.State) {
		log.Info("debug command ignored; debug_mode is off", zap.Stringer("command", cmd.Kind))
		return Handled{Response: &Response{
			Success:         false,
			Narrative:       systemMessage(cmd.Kind.String() + " requires debug mode, which is off for this campaign."),
			GameState:       snap.State,
			SequenceID:      snap.LastSequenceID,
			UserSceneNumber: snap.SceneCount,
		}}, nil
	}

	switch cmd.Kind {
	case CommandAskState:
		return s.askState(snap)
	case CommandSet:
		return s.setState(ctx, snap, cmd.Body, log)
	case CommandUpdateState:
		return s.updateState(ctx, snap, cmd.Body, log)
	default:
		return nil, apperrors.Newf(apperrors.CodeInvalidCommand, "unsupported debug command %s", cmd.Kind)
	}
}

func (s *Service) askState(snap state.Snapshot) (Outcome, error) {
	raw, err := json.MarshalIndent(snap.State, "", "  ")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStateDocMalformed, "state document cannot be rendered", err)
	}
	return Handled{Response: s.commandResponse(snap, snap.State, nil, string(raw))}, nil
}

func (s *Service) setState(ctx context.Context, snap state.Snapshot, body string, log *zap.Logger) (Outcome, error) {
	instrs, bad := merge.ParseSetCommand(body)
	for _, le := range bad {
		log.Warn("skipping malformed SET line",
			zap.Int("line", le.Line),
			zap.String("text", le.Text),
			zap.Error(le.Err),
		)
	}

	next, changed := merge.ApplyInstructions(snap.State, instrs)
	applied := make(map[string]any, len(instrs))
	for _, in := range instrs {
		key := in.Path.String()
		if in.Append {
			key += ".append"
		}
		applied[key] = in.Value
	}

	msg := "GOD_MODE_SET applied " + plural(len(instrs), "line")
	if len(bad) > 0 {
		lines := make([]string, 0, len(bad))
		for _, le := range bad {
			lines = append(lines, le.Error())
		}
		msg += "; skipped " + plural(len(bad), "line") + ": " + strings.Join(lines, "; ")
	}
	if !changed {
		resp := s.commandResponse(snap, snap.State, nil, systemMessage(msg+"."))
		resp.Success = len(bad) == 0
		return Handled{Response: resp}, nil
	}

	next, err := s.putState(ctx, snap, next)
	if err != nil {
		return nil, err
	}
	log.Info("state updated by GOD_MODE_SET", zap.Int("applied", len(instrs)), zap.Int("skipped", len(bad)))
	return Handled{Response: s.commandResponse(snap, next, applied, systemMessage(msg+"."))}, nil
}

func (s *Service) updateState(ctx context.Context, snap state.Snapshot, body string, log *zap.Logger) (Outcome, error) {
	var payload any
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidJSON, "GOD_MODE_UPDATE_STATE payload is invalid JSON", err)
	}
	delta, ok := payload.(map[string]any)
	if !ok {
		return nil, apperrors.New(apperrors.CodeInvalidJSON, "GOD_MODE_UPDATE_STATE payload must be a JSON object")
	}

	next, changed := merge.Merge(snap.State, delta)
	if !changed {
		return Handled{Response: s.commandResponse(snap, snap.State, nil, systemMessage("GOD_MODE_UPDATE_STATE had nothing to apply."))}, nil
	}
	next, err := s.putState(ctx, snap, next)
	if err != nil {
		return nil, err
	}
	log.Info("state updated by GOD_MODE_UPDATE_STATE", zap.Strings("keys", sortedKeys(delta)))
	return Handled{Response: s.commandResponse(snap, next, delta, systemMessage("GOD_MODE_UPDATE_STATE applied."))}, nil
}

// putState stamps and writes a debug command's result. The pending corrections
// are recomputed against the written state so the next turn never sees
// corrections for a state the operator has since replaced.
func (s *Service) putState(ctx context.Context, snap state.Snapshot, next map[string]any) (map[string]any, error) {
	next, _ = merge.Merge(next, map[string]any{
		state.KeyLastUpdatedAt: s.now().UTC().Format(time.RFC3339Nano),
	})
	corrections := s.detector.DetectTransition(discrepancy.Transition{
		CampaignID: snap.CampaignID,
		Before:     snap.State,
		After:      next,
	})
	if _, err := s.store.PutState(ctx, snap.CampaignID, next, corrections, snap.Version); err != nil {
		return nil, persistError(snap.CampaignID, err)
	}
	return next, nil
}

func (s *Service) commandResponse(snap state.Snapshot, doc, applied map[string]any, narrative string) *Response {
	debug := state.DebugMode(doc)
	resp := &Response{
		Success:         true,
		Narrative:       narrative,
		GameState:       doc,
		SequenceID:      snap.LastSequenceID,
		UserSceneNumber: snap.SceneCount,
		DebugMode:       debug,
		PendingUpgrade:  s.evaluator.PendingUpgradeType(doc),
	}
	if debug {
		resp.StateUpdates = applied
	}
	return resp
}

func (s *Service) load(ctx context.Context, id string) (state.Snapshot, error) {
	snap, err := s.store.GetState(ctx, id)
	switch {
	case errors.Is(err, postgres.ErrCampaignNotFound):
		return state.Snapshot{}, apperrors.Newf(apperrors.CodeCampaignNotFound, "campaign %s not found", id).
			WithMetadata("campaign_id", id)
	case err != nil:
		return state.Snapshot{}, apperrors.Wrap(apperrors.CodeStorageFailure, "loading campaign state", err)
	case snap.State == nil:
		return state.Snapshot{}, apperrors.Newf(apperrors.CodeStateDocMalformed, "campaign %s has no state document", id)
	}
	return snap, nil
}

func persistError(id string, err error) error {
	switch {
	case errors.Is(err, postgres.ErrVersionConflict):
		return apperrors.Wrap(apperrors.CodeTurnConflict, "campaign state changed during the turn; retry", err)
	case errors.Is(err, postgres.ErrCampaignNotFound):
		return apperrors.Newf(apperrors.CodeCampaignNotFound, "campaign %s not found", id).
			WithMetadata("campaign_id", id)
	default:
		return apperrors.Wrap(apperrors.CodeStorageFailure, "saving campaign state", err)
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
