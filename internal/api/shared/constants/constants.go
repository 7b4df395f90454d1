package constants

const (
	DEFAULT_TRANSACTIONS_LIMIT = 50
	MAX_TRANSACTIONS_LIMIT     = 500
	MAX_DESCRIPTION_LENGTH     = 1000
)
