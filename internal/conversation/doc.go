// Package conversation provides the conversation orchestration service.
//
// # Overview
//
// The conversation package sits between the HTTP handlers and the
// generation backend. It owns the only real state-machine logic in the
// gateway: resolving which stored conversation a request mutates,
// serializing racing requests on the same conversation, shaping history
// for the backend, and classifying partial failures.
//
// # Service
//
// The Service coordinates conversation operations:
//
//	svc := conversation.New(store, generator, logger)
//
// Key operations:
//
//   - Chat(ctx, sessionID, message, conversationID): run one exchange
//   - History(ctx, sessionID): read the active transcript
//
// # Conversation Resolution
//
// Each chat request resolves to exactly one conversation:
//
//  1. No conversation id: create a fresh conversation for the session
//  2. Unknown or foreign id: silently create a fresh conversation
//  3. Id owned by the caller: reuse it with history intact
//
// The silent fallback on unknown/foreign ids is deliberate: a stale or
// spoofed id must never leak another session's transcript nor hard-fail
// the user. Do not turn it into a hard error.
//
// # Append Atomicity
//
// A user turn is only ever persisted together with its model reply, as a
// single store append. Blocked or failed generations append nothing, so
// the transcript never contains a dangling user turn.
//
// # Concurrency
//
// Two requests hitting the same conversation are serialized by a per-
// conversation mutex (see the locks package). The second request reloads
// history after acquiring the lock, so it generates against the first
// request's appended turns rather than overwriting them.
//
// # Failure Taxonomy
//
//   - ErrEmptyMessage: validation failure, nothing touched
//   - *gemini.BlockedError: backend refused, history untouched
//   - wrapped transport/store errors: generic failure, history untouched
//   - *ReplyNotSavedError: reply produced but not durably recorded; the
//     reply is still carried to the caller for this turn and the
//     condition is logged at Error level
package conversation
