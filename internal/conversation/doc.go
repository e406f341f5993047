// ABOUTME: Package documentation for the conversation synchronizer
// ABOUTME: Describes the projection, state machine, and staleness policy

// Package conversation keeps durable storage, the remote backend, and
// an in-memory projection of the active conversation in sync.
//
// # Projection
//
// The Service owns a single projection: the current State, the
// conversation list, the selected conversation, and its messages. All
// mutations happen under the service mutex; observers receive immutable
// Snapshot copies through the Broadcaster, which fans out over buffered
// channels and drops snapshots for slow subscribers (a newer snapshot
// always supersedes a missed one).
//
// # Send flow
//
// SendPrompt persists before it queries: the conversation row, an
// optional system seed, the user message, and an empty assistant
// placeholder are all written in fixed order, then read back so the
// projection reflects durable state. Only then does the knowledge
// query run, tagged with the placeholder's message ID. The answer and
// its retrieved documents resolve
// into that message if it is still present; responses whose tag has
// been superseded or whose message left the projection are discarded.
// A message ends with exactly one of Done or Error set.
//
// # Streaming
//
// When the querier implements StreamQuerier, chunks append to the
// placeholder through a Throttler with a fixed 100ms window. The
// concatenation of throttled emissions always equals the concatenation
// of the raw chunks, so total content is independent of timing.
package conversation
