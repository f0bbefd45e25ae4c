// Package api exposes the review orchestrator over HTTP: registering items,
// fetching the next due card, previewing intervals, and submitting reviews.
// Handlers translate service errors to status codes and keep internal detail
// out of responses.
package api
