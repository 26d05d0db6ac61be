// Package githubapi talks to the GitHub REST API for restore runs.
//
// The client wraps google/go-github with a static oauth2 token transport and
// classifies every failure into a small taxonomy: authorization problems and
// connectivity or rate-limit trouble abort the whole run, name conflicts count
// as success, and other rejections fail only the affected repository. Context
// cancellation passes through unclassified.
package githubapi
