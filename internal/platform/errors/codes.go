// Package errors provides structured error handling with i18n support.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Graph data errors (fatal at load time)
	CodeGraphInvalidDocument    Code = "GRAPH_INVALID_DOCUMENT"
	CodeGraphMissingStart       Code = "GRAPH_MISSING_START"
	CodeGraphDuplicateStart     Code = "GRAPH_DUPLICATE_START"
	CodeGraphDuplicateNode      Code = "GRAPH_DUPLICATE_NODE"
	CodeGraphDanglingEdge       Code = "GRAPH_DANGLING_EDGE"
	CodeGraphDanglingRequire    Code = "GRAPH_DANGLING_REQUIREMENT"
	CodeGraphMissingPointSeed   Code = "GRAPH_MISSING_POINT_SEED"
	CodeGraphAttributeConflict  Code = "GRAPH_ATTRIBUTE_REQUIREMENT_CONFLICT"
	CodeGraphInvalidRequirement Code = "GRAPH_INVALID_REQUIREMENT"

	// Passive allocation errors (recoverable gameplay violations)
	CodePassivesUnknownNode         Code = "PASSIVES_UNKNOWN_NODE"
	CodePassivesAlreadyAllocated    Code = "PASSIVES_ALREADY_ALLOCATED"
	CodePassivesNoPointsAvailable   Code = "PASSIVES_NO_POINTS_AVAILABLE"
	CodePassivesRequirementNotMet   Code = "PASSIVES_REQUIREMENT_NOT_MET"
	CodePassivesUnknownRequirement  Code = "PASSIVES_UNKNOWN_REQUIREMENT_KIND"
	CodePassivesNotAllocated        Code = "PASSIVES_NOT_ALLOCATED"
	CodePassivesRefundBlocked       Code = "PASSIVES_REFUND_BLOCKED"
	CodePassivesStartImmutable      Code = "PASSIVES_START_IMMUTABLE"
	CodePassivesInvalidCharacterCtx Code = "PASSIVES_INVALID_CHARACTER_CONTEXT"

	// Keystone registry errors
	CodeKeystoneDuplicate     Code = "KEYSTONE_DUPLICATE"
	CodeKeystoneInvalidEffect Code = "KEYSTONE_INVALID_EFFECT"
	CodeKeystoneScriptFailed  Code = "KEYSTONE_SCRIPT_FAILED"

	// Respec grant errors
	CodeResetGrantInvalid  Code = "RESET_GRANT_INVALID"
	CodeResetGrantExpired  Code = "RESET_GRANT_EXPIRED"
	CodeResetGrantMismatch Code = "RESET_GRANT_MISMATCH"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"

	// Generic request errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeUnauthenticated Code = "UNAUTHENTICATED"
)

// HTTPStatus maps domain codes to HTTP status codes for the JSON API.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - malformed input, bad payloads
	case CodeInvalidArgument,
		CodeGraphInvalidDocument,
		CodeGraphInvalidRequirement:
		return http.StatusBadRequest

	// Unprocessable - valid request, gameplay rules refuse it
	case CodePassivesUnknownNode,
		CodePassivesAlreadyAllocated,
		CodePassivesNoPointsAvailable,
		CodePassivesRequirementNotMet,
		CodePassivesUnknownRequirement,
		CodePassivesNotAllocated,
		CodePassivesRefundBlocked,
		CodePassivesStartImmutable,
		CodePassivesInvalidCharacterCtx:
		return http.StatusUnprocessableEntity

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return http.StatusNotFound

	// Unauthorized - missing or unverifiable credentials
	case CodeUnauthenticated,
		CodeResetGrantInvalid,
		CodeResetGrantExpired:
		return http.StatusUnauthorized

	// Forbidden - valid credentials for the wrong subject or scope
	case CodeResetGrantMismatch:
		return http.StatusForbidden

	default:
		return http.StatusInternalServerError
	}
}
