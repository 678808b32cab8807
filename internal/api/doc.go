// Package api serves the backup trigger, backup history and the Mollie
// payment webhook.
//
// Routes under /api/v1 require an HS256 session token in the Authorization
// header. Errors are returned as {"error": "..."} with fixed messages.
package api
