package entity

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	apperrors "github.com/cory-johannsen/chronicle/internal/errors"
	"github.com/cory-johannsen/chronicle/internal/game/numeric"
)

var (
	//go:embed schemas/character.schema.json
	characterSchemaJSON string
	//go:embed schemas/location.schema.json
	locationSchemaJSON string
)

// HP field names, in lookup order.
var (
	currentHPKeys = []string{"hp", "hp_current", "current_hp"}
	maxHPKeys     = []string{"hp_max", "max_hp"}
)

// ValidationError describes one rejected field with a human-readable message.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Character is a validated PC or NPC record.
type Character struct {
	EntityID   string
	EntityType Kind
	Name       string
	Gender     string
	HP         int
	HPMax      int
	// Record is the coerced, corrected record suitable for persisting.
	Record map[string]any
}

// Location is a validated location record.
type Location struct {
	EntityID string
	Name     string
	Record   map[string]any
}

// Option configures a Validator.
type Option func(*Validator)

// WithStrictHealth makes hp > hp_max a validation failure instead of a clamp.
func WithStrictHealth() Option {
	return func(v *Validator) { v.strictHealth = true }
}

// Validator checks entity records against their schema and domain rules.
// A Validator is safe for concurrent use.
type Validator struct {
	converter       *numeric.Converter
	logger          *zap.Logger
	characterSchema *jsonschema.Schema
	locationSchema  *jsonschema.Schema
	strictHealth    bool
}

// NewValidator compiles the embedded schemas and returns a Validator.
//
// Precondition: converter and logger must be non-nil.
// Postcondition: Returns a ready Validator or a schema compilation error.
func NewValidator(converter *numeric.Converter, logger *zap.Logger, opts ...Option) (*Validator, error) {
	charSchema, err := jsonschema.CompileString("character.schema.json", characterSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("compiling character schema: %w", err)
	}
	locSchema, err := jsonschema.CompileString("location.schema.json", locationSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("compiling location schema: %w", err)
	}
	v := &Validator{
		converter:       converter,
		logger:          logger,
		characterSchema: charSchema,
		locationSchema:  locSchema,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// ValidateCharacter coerces and validates a PC or NPC record.
//
// Numeric fields are coerced first. A missing entity_type is inferred from the
// entity_id prefix. hp above hp_max is clamped down to hp_max unless the Validator
// was built WithStrictHealth. NPCs must carry a non-empty gender.
//
// Postcondition: record is not modified. On failure the error is an *apperrors.Error
// wrapping a *ValidationError naming the offending field.
func (v *Validator) ValidateCharacter(record map[string]any) (Character, error) {
	rec := v.converter.ConvertDict(record)
	if rec == nil {
		return Character{}, invalid(apperrors.CodeInvalidEntity, "", "record is empty")
	}

	id, _ := rec["entity_id"].(string)
	if t, _ := rec["entity_type"].(string); strings.TrimSpace(t) == "" {
		if kind, ok := KindOf(id); ok && kind != KindLocation {
			rec["entity_type"] = string(kind)
		}
	}

	if err := validateSchema(v.characterSchema, rec); err != nil {
		return Character{}, err
	}
	if !IsCharacterID(id) {
		return Character{}, invalid(apperrors.CodeInvalidEntityID, "entity_id",
			fmt.Sprintf("%q does not match (pc|npc)_<slug>_<3 digits>", id))
	}

	c := Character{
		EntityID:   id,
		EntityType: Kind(rec["entity_type"].(string)),
		Record:     rec,
	}
	c.Name, _ = rec["name"].(string)
	c.Gender, _ = rec["gender"].(string)

	if c.EntityType == KindNPC && strings.TrimSpace(c.Gender) == "" {
		return Character{}, invalid(apperrors.CodeNPCGenderMissing, "gender",
			fmt.Sprintf("NPC %s requires a non-empty gender", id))
	}

	if err := v.checkHealth(&c); err != nil {
		return Character{}, err
	}
	return c, nil
}

func (v *Validator) checkHealth(c *Character) error {
	hpKey, hp, hasHP := firstInt(c.Record, currentHPKeys)
	_, hpMax, hasMax := firstInt(c.Record, maxHPKeys)
	c.HP, c.HPMax = hp, hpMax
	if !hasHP || !hasMax || hp <= hpMax {
		return nil
	}
	if v.strictHealth {
		return invalid(apperrors.CodeHealthExceedsMax, hpKey,
			fmt.Sprintf("%s %d exceeds hp_max %d", hpKey, hp, hpMax))
	}
	v.logger.Debug("clamping hp to hp_max",
		zap.String("entity_id", c.EntityID),
		zap.Int("hp", hp),
		zap.Int("hp_max", hpMax),
	)
	c.Record[hpKey] = hpMax
	c.HP = hpMax
	return nil
}

// ClampHealth coerces record and resolves hp above hp_max the same way
// ValidateCharacter does, for records that do not yet carry an identity.
//
// Postcondition: record is not modified. Returns the corrected copy, or a
// CodeHealthExceedsMax error when the Validator is strict.
func (v *Validator) ClampHealth(record map[string]any) (map[string]any, error) {
	c := Character{Record: v.converter.ConvertDict(record)}
	if c.Record == nil {
		c.Record = map[string]any{}
	}
	if err := v.checkHealth(&c); err != nil {
		return nil, err
	}
	return c.Record, nil
}

// ValidateLocation validates a location record.
//
// Postcondition: record is not modified. On failure the error wraps a *ValidationError.
func (v *Validator) ValidateLocation(record map[string]any) (Location, error) {
	rec := v.converter.ConvertDict(record)
	if rec == nil {
		return Location{}, invalid(apperrors.CodeInvalidEntity, "", "record is empty")
	}
	if err := validateSchema(v.locationSchema, rec); err != nil {
		return Location{}, err
	}
	id := rec["entity_id"].(string)
	if !IsLocationID(id) {
		return Location{}, invalid(apperrors.CodeInvalidEntityID, "entity_id",
			fmt.Sprintf("%q does not match loc_<slug>_<3 digits>", id))
	}
	name, _ := rec["name"].(string)
	return Location{EntityID: id, Name: name, Record: rec}, nil
}

func firstInt(rec map[string]any, keys []string) (string, int, bool) {
	for _, k := range keys {
		if n, ok := numeric.ToInt(rec[k]); ok {
			return k, n, true
		}
	}
	return "", 0, false
}

func invalid(code apperrors.Code, field, message string) error {
	ve := &ValidationError{Field: field, Message: message}
	return apperrors.Wrap(code, ve.Error(), ve)
}

// validateSchema checks rec against schema after a JSON round trip, so the schema
// sees exactly what will be persisted.
func validateSchema(schema *jsonschema.Schema, rec map[string]any) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return invalid(apperrors.CodeInvalidEntity, "", fmt.Sprintf("record is not JSON-serializable: %v", err))
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return invalid(apperrors.CodeInvalidEntity, "", fmt.Sprintf("record is not valid JSON: %v", err))
	}
	err = schema.Validate(doc)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return invalid(apperrors.CodeInvalidEntity, "", err.Error())
	}
	leaf := deepestCause(verr)
	field := strings.TrimPrefix(leaf.InstanceLocation, "/")
	field = strings.ReplaceAll(field, "/", ".")
	code := apperrors.CodeInvalidEntity
	if field == "entity_id" {
		code = apperrors.CodeInvalidEntityID
	}
	return invalid(code, field, leaf.Message)
}

func deepestCause(e *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(e.Causes) > 0 {
		e = e.Causes[0]
	}
	return e
}
