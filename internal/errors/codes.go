// Package errors provides the structured error taxonomy for turn processing.
//
// Every failure that crosses the turn boundary carries a Code. The external API
// layer maps codes to transport statuses through GRPCCode and HTTPStatus.
package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an error that carries no domain code.
	CodeUnknown Code = "UNKNOWN"

	// Campaign errors
	CodeCampaignNotFound  Code = "CAMPAIGN_NOT_FOUND"
	CodeCampaignExists    Code = "CAMPAIGN_ALREADY_EXISTS"
	CodeCampaignIDEmpty   Code = "CAMPAIGN_ID_EMPTY"
	CodeTurnConflict      Code = "TURN_CONFLICT"
	CodeTurnInputEmpty    Code = "TURN_INPUT_EMPTY"
	CodeTurnModeInvalid   Code = "TURN_MODE_INVALID"
	CodeTurnInterrupted   Code = "TURN_INTERRUPTED"
	CodeStateDocMalformed Code = "STATE_DOCUMENT_MALFORMED"

	// Debug command errors
	CodeInvalidJSON    Code = "INVALID_JSON"
	CodeInvalidCommand Code = "INVALID_COMMAND"

	// Entity errors
	CodeInvalidEntity    Code = "INVALID_ENTITY"
	CodeInvalidEntityID  Code = "INVALID_ENTITY_ID"
	CodeNPCGenderMissing Code = "NPC_GENDER_MISSING"
	CodeHealthExceedsMax Code = "HEALTH_EXCEEDS_MAX"

	// Collaborator errors
	CodeLLMFailure     Code = "LLM_FAILURE"
	CodeStorageFailure Code = "STORAGE_FAILURE"
	CodeInternal       Code = "INTERNAL"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - malformed input the caller can fix
	case CodeCampaignIDEmpty,
		CodeTurnInputEmpty,
		CodeTurnModeInvalid,
		CodeInvalidJSON,
		CodeInvalidCommand,
		CodeInvalidEntity,
		CodeInvalidEntityID,
		CodeNPCGenderMissing,
		CodeHealthExceedsMax:
		return codes.InvalidArgument

	// NotFound - campaign-scoped operation against a missing campaign
	case CodeCampaignNotFound:
		return codes.NotFound

	case CodeCampaignExists:
		return codes.AlreadyExists

	// Aborted - another turn won the read-modify-write race
	case CodeTurnConflict:
		return codes.Aborted

	case CodeTurnInterrupted:
		return codes.Canceled

	case CodeLLMFailure:
		return codes.Unavailable

	default:
		return codes.Internal
	}
}

// HTTPStatus maps domain codes to the HTTP status an API layer should return.
func (c Code) HTTPStatus() int {
	switch c.GRPCCode() {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.Canceled:
		return 499
	case codes.Unavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
