// Package gitmirror pushes backed-up git checkouts to restored repositories.
//
// A checkout travels as a bare clone inside the backup directory. The
// publisher inspects it with go-git, skips checkouts holding no references,
// and shells out to git push --mirror against the authenticated remote,
// leaving credential redaction to the executor.
package gitmirror
