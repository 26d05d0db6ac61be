// Package backup loads GitHub organization backups from disk.
//
// A backup is a directory tree with one directory per repository holding
// issues.json, pull_requests.json, and optionally a git checkout to mirror.
// Collections tolerate both bare JSON arrays and GraphQL-style nodes wrappers,
// and repositories with missing or malformed data surface a load failure so
// callers can fail them individually instead of aborting the whole run.
package backup
