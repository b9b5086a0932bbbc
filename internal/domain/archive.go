package domain

// ArchiveRecord is a durable, write-once snapshot of a session. The ID doubles
// as the sort key and the filename stem, format YYYYMMDD_HHMMSS.
type ArchiveRecord struct {
	ID    string
	Turns []Turn
}

// ArchiveSummary is the compact listing shape returned by the archive stores.
type ArchiveSummary struct {
	ID        string
	TurnCount int
}
