package redis

const (
	keyPrefix     = "papyr/"
	keyPrefixTask = keyPrefix + "tasks/"

	// KeyTaskIngest is the queue key for document ingestion tasks
	KeyTaskIngest = keyPrefixTask + "ingest"
	// KeyTaskIngestDead holds ingestion envelopes that failed validation
	KeyTaskIngestDead = keyPrefixTask + "ingest_dead"
)
