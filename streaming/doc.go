// Package streaming reconstructs Messages API responses from their
// server-sent event streams.
//
// Three layers build on each other:
//
//   - Accumulator folds each raw event into the evolving Message snapshot,
//     enforcing event-order invariants and re-parsing streamed tool input
//     with best-effort partial JSON after every fragment.
//   - BuildEvents derives the higher-level semantic events (text deltas with
//     cumulative snapshots, parsed tool input, citations, thinking, the
//     finalised block and message) from a raw event plus the snapshot.
//   - MessageStream owns the response body and fuses the two into a single
//     pull iterator, with a text-only view and a channel feed layered on top.
//
// Invariants held after every event: the content list only grows, a block's
// type never changes, and each block's text, thinking, citations and
// buffered tool input lengths are monotone non-decreasing.
package streaming
