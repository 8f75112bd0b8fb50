// Package store holds recently analysed sessions in memory.
//
// Sessions are grouped by source_id. Each source keeps its last few sessions
// (DefaultHistory) so a recording can be compared with earlier runs of the
// same source. A source expires when its latest session is older than the
// TTL; Run evicts expired sources in the background.
package store
