// Package api exposes the studio over HTTP with gin.
//
// Routes live under /api/v1: CRUD for clients, projects, and videos with
// skip/limit pagination, review actions on videos (submit, approve, reject,
// deliver, retry), asset and usage listings, and the inbound webhooks. Errors
// are rendered as {"error": message, "kind": kind} with the status derived
// from the services error kind.
//
// When an API token is configured every route except /health and the
// webhooks requires "Authorization: Bearer <token>".
package api
