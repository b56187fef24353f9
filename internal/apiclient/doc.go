// Package apiclient is the single entry point for talking to the Do-It
// platform API. It owns the credential lifecycle on the request path:
// attaching the access token to outgoing requests, refreshing it exactly once
// when a request comes back 401, replaying the original request, and
// terminating the session when recovery is impossible.
//
// Transports compose as refresh coordinator → auth transport → base
// transport. Domain services never see tokens; they call Request (or the
// generic Get/Post/Patch/Delete helpers) and receive either decoded data or a
// *ClassifiedError.
package apiclient
