// Package gemini adapts the Google Gemini API to the conversation service.
//
// The adapter owns everything backend-specific: turn-to-content
// translation, the out-of-band system instruction, safety settings, the
// per-call timeout, and classification of responses into exactly three
// outcomes: a reply, a *BlockedError (no usable content, with the block
// reason when available), or a wrapped transport error. Nothing from the
// genai SDK leaks past this package.
//
// The client is stateless per invocation: the caller supplies the full
// relevant history on every call and nothing is cached between calls.
package gemini
