package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/cory-johannsen/chronicle/internal/errors"
	"github.com/cory-johannsen/chronicle/internal/game/entity"
	"github.com/cory-johannsen/chronicle/internal/game/merge"
	"github.com/cory-johannsen/chronicle/internal/game/npc"
	"github.com/cory-johannsen/chronicle/internal/game/state"
	"github.com/cory-johannsen/chronicle/internal/storage/postgres"
)

// CreateRequest describes a new campaign.
type CreateRequest struct {
	// CampaignID defaults to a random UUID when empty.
	CampaignID string
	// PlayerCharacter is validated as a PC record; an entity_id is derived from
	// the name when absent.
	PlayerCharacter map[string]any
	// World is merged over the default world_data.
	World     map[string]any
	DebugMode bool
}

// CreateCampaign builds the default state for a new campaign, seeds npc_data
// from preloaded NPC templates, and persists it.
//
// Postcondition: Returns CodeCampaignExists when the ID is taken, or a
// validation code when the player character or a template is invalid.
func (s *Service) CreateCampaign(ctx context.Context, req CreateRequest) (state.Snapshot, error) {
	id := strings.TrimSpace(req.CampaignID)
	if id == "" {
		id = uuid.NewString()
	}

	doc := state.New(s.now())
	doc[state.KeyDebugMode] = req.DebugMode
	if len(req.World) > 0 {
		doc, _ = merge.Merge(doc, map[string]any{state.KeyWorldData: req.World})
	}

	if len(req.PlayerCharacter) > 0 {
		pc, err := s.playerCharacter(req.PlayerCharacter)
		if err != nil {
			return state.Snapshot{}, err
		}
		doc[state.KeyPlayerCharacter] = pc
	}

	npcs, err := s.preloadNPCs(state.Section(doc, state.KeyNPCData))
	if err != nil {
		return state.Snapshot{}, err
	}
	doc[state.KeyNPCData] = npcs

	snap, err := s.store.CreateCampaign(ctx, id, doc)
	if err != nil {
		if errors.Is(err, postgres.ErrCampaignExists) {
			return state.Snapshot{}, apperrors.Newf(apperrors.CodeCampaignExists, "campaign %s already exists", id).
				WithMetadata("campaign_id", id)
		}
		return state.Snapshot{}, apperrors.Wrap(apperrors.CodeStorageFailure, "creating campaign", err)
	}
	s.logger.Info("campaign created",
		zap.String("campaign_id", id),
		zap.Int("npcs", len(npcs)),
		zap.Bool("debug_mode", req.DebugMode),
	)
	return snap, nil
}

func (s *Service) playerCharacter(raw map[string]any) (map[string]any, error) {
	pc := merge.DeepCopyMap(raw)
	if id, _ := pc["entity_id"].(string); id == "" {
		name, _ := pc["name"].(string)
		pcID, err := entity.NewID(entity.KindPC, name, 1)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInvalidEntityID, "player character name cannot form an entity id", err)
		}
		pc["entity_id"] = pcID
	}
	c, err := s.validator.ValidateCharacter(pc)
	if err != nil {
		return nil, err
	}
	return c.Record, nil
}

func (s *Service) preloadNPCs(existing map[string]any) (map[string]any, error) {
	npcs, err := npc.Preload(s.templates, existing)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidEntity, "preloading npc templates", err)
	}
	for key, v := range npcs {
		rec, ok := v.(map[string]any)
		if !ok {
			continue
		}
		c, err := s.validator.ValidateCharacter(rec)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInvalidEntity, fmt.Sprintf("preloaded npc %s is invalid", key), err)
		}
		npcs[key] = c.Record
	}
	return npcs, nil
}

// History returns up to limit recent story entries, oldest first.
func (s *Service) History(ctx context.Context, campaignID string, limit int) ([]state.StoryEntry, error) {
	if _, err := s.load(ctx, campaignID); err != nil {
		return nil, err
	}
	entries, err := s.store.RecentStory(ctx, campaignID, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageFailure, "loading story history", err)
	}
	return entries, nil
}
