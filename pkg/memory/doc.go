// Package memory stores durable per-user memories and retrieves them
// through layered disclosure: a search index first, chronological context
// second, full records last.
//
// The text index uses SQLite FTS5, which mattn/go-sqlite3 only compiles
// in behind a build tag: build and test with -tags sqlite_fts5. Without
// the tag NewStore fails with an error naming the tag, and the package
// tests skip.
//
// Invariants:
// - Every record lives in both the relational store and the text index; writes update both in one transaction.
// - Archived records never appear in search, timeline, or retrieval results.
// - Keyword matches rank ahead of semantic matches when results merge.
// - Save/search/timeline operations emit tracing spans and metrics.
//
// Usage:
//
//	store, _ := memory.NewStore(memory.Config{Dir: "/data/alice", UserID: "alice"})
//	defer store.Close()
//	rec, _ := store.Save(ctx, memory.NewRecordData{Title: "Prefers dark mode", Type: memory.TypePreference})
//	results, _ := store.Search(ctx, "dark mode", memory.SearchFilters{})
//	_, _ = rec, results
package memory
