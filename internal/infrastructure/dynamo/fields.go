package dynamo

// DynamoDB attribute names used in update expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldEnable           = "enable"
	fieldRead             = "read"
	fieldStatus           = "status"
	fieldUpdatedAt        = "updated_at"
	fieldBalanceCents     = "balance_cents"
	fieldReplies          = "replies"
	fieldRefreshToken     = "refresh_token"
	fieldRefreshExpiresAt = "refresh_expires_at"
	fieldRole             = "role"
	fieldUsed             = "used"
	fieldUsedBy           = "used_by"
	fieldExpiresAt        = "expires_at"
)
