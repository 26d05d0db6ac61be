// Package migrate implements the organization restore workflow that replays
// backed-up repositories, issues, comments, and pull request documentation into
// a target organization, pacing remote calls through the rate limiter and
// resuming from the durable migration ledger.
package migrate
