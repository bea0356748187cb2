// Package datasource ingests external streams — files, ATProto firehose
// posts, Discord messages — into derived memory blocks and routes a
// notification about each ingested item to a named target via a
// MessageRouter. A DataSource is generic over its item, filter, and
// cursor types; a StreamBuffer sits in front of each source's live
// stream to bound memory use and smooth bursts before the
// DataIngestionCoordinator drains them.
package datasource
