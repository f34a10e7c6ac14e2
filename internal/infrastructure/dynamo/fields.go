package dynamo

// DynamoDB attribute names used in keys and update expressions across repos.
const (
	fieldUserID       = "user_id"
	fieldEmail        = "email"
	fieldSortKey      = "sk"
	fieldPasswordHash = "password_hash"
	fieldIsVerified   = "is_verified"
	fieldUpdatedAt    = "updated_at"
	fieldExpiresAt    = "expires_at"
	fieldAttempts     = "attempts"
)
