// Package memory provides the per-actor functional memory store: a local,
// in-process hybrid of vector and graph recall.
//
// Every inbox delivery, tool invocation, injection, and error is inserted
// as an entry. Entries carry a sparse term-frequency vector over the
// actor's private append-only vocabulary and weighted links to similar
// recent entries. Retrieval scores every entry by
//
//	cosine(query, entry) * decay(now - entry.Timestamp) + graph bonus
//
// where decay falls linearly from 1 to 0 across the configured window and
// the graph bonus rewards entries clustered with other currently-relevant
// candidates.
//
// Design constraints:
//   - Deterministic: no learned embeddings, no external services. Two
//     retrievals over identical state return identical orderings.
//   - Bounded: a hard entry cap with decay-scored eviction.
//   - Incremental: graph construction is O(K) per insert, linking each
//     new entry to at most K recent similar predecessors.
//
// The store is exclusively owned by one actor's loop and performs no
// internal locking; cross-task access goes through snapshots.
package memory
