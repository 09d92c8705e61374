package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/chronicle/internal/game/state"
)

// ErrCampaignNotFound is returned when a campaign lookup yields no results.
var ErrCampaignNotFound = errors.New("campaign not found")

// ErrCampaignExists is returned when creating a campaign whose ID is taken.
var ErrCampaignExists = errors.New("campaign already exists")

// ErrVersionConflict is returned when a write presents a stale state version.
var ErrVersionConflict = errors.New("campaign state version conflict")

// TurnCommit is everything one completed turn writes.
type TurnCommit struct {
	CampaignID string
	// ExpectedVersion must equal the stored version for the commit to apply.
	ExpectedVersion    int64
	State              map[string]any
	Entries            []state.StoryEntry
	LastSequenceID     int
	SceneCount         int
	PendingCorrections []string
}

// CampaignRepository persists campaign state documents and story history.
type CampaignRepository struct {
	db *pgxpool.Pool
}

// NewCampaignRepository creates a CampaignRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewCampaignRepository(db *pgxpool.Pool) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// CreateCampaign inserts a new campaign with the given initial state.
//
// Precondition: id must be non-empty; doc must be JSON-serializable.
// Postcondition: Returns the stored Snapshot at version 1, or ErrCampaignExists.
func (r *CampaignRepository) CreateCampaign(ctx context.Context, id string, doc map[string]any) (state.Snapshot, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return state.Snapshot{}, fmt.Errorf("encoding state: %w", err)
	}

	var updatedAt time.Time
	var version int64
	err = r.db.QueryRow(ctx,
		`INSERT INTO campaigns (id, state)
		 VALUES ($1, $2)
		 RETURNING version, updated_at`,
		id, raw,
	).Scan(&version, &updatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return state.Snapshot{}, ErrCampaignExists
		}
		return state.Snapshot{}, fmt.Errorf("inserting campaign: %w", err)
	}

	return state.Snapshot{
		CampaignID: id,
		State:      doc,
		Version:    version,
		UpdatedAt:  updatedAt,
	}, nil
}

// GetState loads a campaign's state document and turn bookkeeping.
//
// Precondition: id must be non-empty.
// Postcondition: Returns the Snapshot or ErrCampaignNotFound.
func (r *CampaignRepository) GetState(ctx context.Context, id string) (state.Snapshot, error) {
	var (
		snap       state.Snapshot
		rawState   []byte
		rawPending []byte
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, state, version, last_sequence_id, scene_count, pending_corrections, updated_at
		 FROM campaigns WHERE id = $1`,
		id,
	).Scan(&snap.CampaignID, &rawState, &snap.Version, &snap.LastSequenceID,
		&snap.SceneCount, &rawPending, &snap.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return state.Snapshot{}, ErrCampaignNotFound
		}
		return state.Snapshot{}, fmt.Errorf("querying campaign: %w", err)
	}

	if err := json.Unmarshal(rawState, &snap.State); err != nil {
		return state.Snapshot{}, fmt.Errorf("decoding state: %w", err)
	}
	if err := json.Unmarshal(rawPending, &snap.PendingCorrections); err != nil {
		return state.Snapshot{}, fmt.Errorf("decoding pending corrections: %w", err)
	}
	return snap, nil
}

// PutState replaces a campaign's state document and pending corrections without
// touching story history.
//
// Precondition: expectedVersion must be the version read with GetState.
// Postcondition: Returns the new version, ErrVersionConflict when the stored version
// differs, or ErrCampaignNotFound. A nil corrections slice clears them.
func (r *CampaignRepository) PutState(ctx context.Context, id string, doc map[string]any, corrections []string, expectedVersion int64) (int64, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("encoding state: %w", err)
	}
	if corrections == nil {
		corrections = []string{}
	}
	rawPending, err := json.Marshal(corrections)
	if err != nil {
		return 0, fmt.Errorf("encoding pending corrections: %w", err)
	}

	var version int64
	err = r.db.QueryRow(ctx,
		`UPDATE campaigns
		 SET state = $2, pending_corrections = $3, version = version + 1, updated_at = NOW()
		 WHERE id = $1 AND version = $4
		 RETURNING version`,
		id, raw, rawPending, expectedVersion,
	).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, missOrConflict(ctx, r.db, id)
		}
		return 0, fmt.Errorf("updating state: %w", err)
	}
	return version, nil
}

// AppendStoryEntry inserts one story entry.
//
// Precondition: e.ID must be set; the campaign must exist.
// Postcondition: Returns nil, ErrCampaignNotFound, or a wrapped database error.
func (r *CampaignRepository) AppendStoryEntry(ctx context.Context, id string, e state.StoryEntry) error {
	return insertStoryEntry(ctx, r.db, id, e)
}

// RecentStory returns up to limit of the campaign's latest story entries, oldest first.
//
// Precondition: limit must be >= 0.
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *CampaignRepository) RecentStory(ctx context.Context, id string, limit int) ([]state.StoryEntry, error) {
	if limit == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, sequence_id, actor, mode, text, fields, created_at
		 FROM story_entries WHERE campaign_id = $1
		 ORDER BY sequence_id DESC LIMIT $2`,
		id, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing story entries: %w", err)
	}
	defer rows.Close()

	var entries []state.StoryEntry
	for rows.Next() {
		var (
			e         state.StoryEntry
			mode      string
			rawFields []byte
		)
		if err := rows.Scan(&e.ID, &e.SequenceID, &e.Actor, &mode, &e.Text, &rawFields, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning story entry: %w", err)
		}
		e.Mode = state.Mode(mode)
		if err := json.Unmarshal(rawFields, &e.Fields); err != nil {
			return nil, fmt.Errorf("decoding story entry fields: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating story entries: %w", err)
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// CommitTurn writes a completed turn atomically: the state document, the turn's
// story entries, the sequence bookkeeping, and the corrections for the next turn.
//
// Precondition: c.ExpectedVersion must be the version read at the start of the turn.
// Postcondition: Returns the new version; on any error nothing is written.
func (r *CampaignRepository) CommitTurn(ctx context.Context, c TurnCommit) (int64, error) {
	raw, err := json.Marshal(c.State)
	if err != nil {
		return 0, fmt.Errorf("encoding state: %w", err)
	}
	pending := c.PendingCorrections
	if pending == nil {
		pending = []string{}
	}
	rawPending, err := json.Marshal(pending)
	if err != nil {
		return 0, fmt.Errorf("encoding pending corrections: %w", err)
	}

	var version int64
	err = pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`UPDATE campaigns
			 SET state = $2, version = version + 1, last_sequence_id = $4,
			     scene_count = $5, pending_corrections = $6, updated_at = NOW()
			 WHERE id = $1 AND version = $3
			 RETURNING version`,
			c.CampaignID, raw, c.ExpectedVersion, c.LastSequenceID, c.SceneCount, rawPending,
		).Scan(&version)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return missOrConflict(ctx, tx, c.CampaignID)
			}
			return fmt.Errorf("updating campaign: %w", err)
		}
		for _, e := range c.Entries {
			if err := insertStoryEntry(ctx, tx, c.CampaignID, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

// querier is the query surface shared by pools and transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertStoryEntry(ctx context.Context, q querier, campaignID string, e state.StoryEntry) error {
	fields := e.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	rawFields, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encoding story entry fields: %w", err)
	}
	_, err = q.Exec(ctx,
		`INSERT INTO story_entries (id, campaign_id, sequence_id, actor, mode, text, fields)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, campaignID, e.SequenceID, e.Actor, string(e.Mode), e.Text, rawFields,
	)
	if err != nil {
		if isForeignKeyError(err) {
			return ErrCampaignNotFound
		}
		return fmt.Errorf("inserting story entry: %w", err)
	}
	return nil
}

// missOrConflict distinguishes a missing campaign from a stale version after a
// guarded update matched no row.
func missOrConflict(ctx context.Context, q querier, id string) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM campaigns WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking campaign: %w", err)
	}
	if !exists {
		return ErrCampaignNotFound
	}
	return ErrVersionConflict
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	return sqlState(err) == "23505"
}

// isForeignKeyError checks if a pgx error is a foreign key violation.
func isForeignKeyError(err error) bool {
	return sqlState(err) == "23503"
}

func sqlState(err error) string {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState()
	}
	return ""
}
