package domain

const (
	// MAX_TOKEN_SYMBOL_LENGTH is the longest accepted token symbol
	MAX_TOKEN_SYMBOL_LENGTH = 10

	// DEFAULT_TRANSACTIONS_PAGE_SIZE is the keyset page size used when walking the ledger
	DEFAULT_TRANSACTIONS_PAGE_SIZE = 100

	// DEFAULT_MAX_DISTRIBUTION_BATCH caps the number of users in a single distribution call
	DEFAULT_MAX_DISTRIBUTION_BATCH = 1000
)
