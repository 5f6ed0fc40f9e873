// Package web is the thin HTTP surface over the conversation service.
//
// Two JSON endpoints carry the whole contract:
//
//	GET  /history -> {"history": [Turn...], "conversationId": <id|null>}
//	POST /chat    -> {"reply": <string>, "conversationId": <id>}
//
// plus GET /health and the embedded single-page frontend served from /.
//
// Session identity is an opaque cookie issued here by the withSession
// middleware; the conversation core never sees the cookie, only the id.
// Failure mapping: empty message is 400, blocked generations are 500 with
// the backend's block reason, everything else is a generic 500. When a
// reply was generated but could not be persisted the handler still returns
// it with 200; the service logs the gap in history.
package web
