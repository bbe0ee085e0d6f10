package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeUnknown         = "UNKNOWN"
	CodeNotFound        = "NOT_FOUND"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeUnauthenticated = "UNAUTHENTICATED"

	CodePassivesUnknownNode         = "PASSIVES_UNKNOWN_NODE"
	CodePassivesAlreadyAllocated    = "PASSIVES_ALREADY_ALLOCATED"
	CodePassivesNoPointsAvailable   = "PASSIVES_NO_POINTS_AVAILABLE"
	CodePassivesRequirementNotMet   = "PASSIVES_REQUIREMENT_NOT_MET"
	CodePassivesUnknownRequirement  = "PASSIVES_UNKNOWN_REQUIREMENT_KIND"
	CodePassivesNotAllocated        = "PASSIVES_NOT_ALLOCATED"
	CodePassivesRefundBlocked       = "PASSIVES_REFUND_BLOCKED"
	CodePassivesStartImmutable      = "PASSIVES_START_IMMUTABLE"
	CodePassivesInvalidCharacterCtx = "PASSIVES_INVALID_CHARACTER_CONTEXT"

	CodeResetGrantInvalid  = "RESET_GRANT_INVALID"
	CodeResetGrantExpired  = "RESET_GRANT_EXPIRED"
	CodeResetGrantMismatch = "RESET_GRANT_MISMATCH"
)

var enUSCatalog = &Catalog{
	locale: "en-US",
	messages: map[Code]string{
		CodeUnknown:         "An unexpected error occurred",
		CodeNotFound:        "The requested resource was not found",
		CodeInvalidArgument: "The request is malformed",
		CodeUnauthenticated: "Authentication required",

		// Passive allocation errors
		CodePassivesUnknownNode:         "Passive node {{.NodeID}} does not exist",
		CodePassivesAlreadyAllocated:    "Passive node {{.NodeID}} is already allocated",
		CodePassivesNoPointsAvailable:   "No passive points available",
		CodePassivesRequirementNotMet:   "Requirements for {{.NodeID}} are not met",
		CodePassivesUnknownRequirement:  "Passive node {{.NodeID}} has an unrecognized requirement",
		CodePassivesNotAllocated:        "Passive node {{.NodeID}} is not allocated",
		CodePassivesRefundBlocked:       "Other allocated passives depend on {{.NodeID}}",
		CodePassivesStartImmutable:      "The starting node cannot be refunded",
		CodePassivesInvalidCharacterCtx: "Character level and class are required",

		// Respec grant errors
		CodeResetGrantInvalid:  "Respec grant is invalid",
		CodeResetGrantExpired:  "Respec grant has expired",
		CodeResetGrantMismatch: "Respec grant {{.Field}} does not match",
	},
}
