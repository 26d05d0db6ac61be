// Package gitrepo models git remote URLs for the restore pipeline.
//
// It parses the origin remotes recorded in backed-up checkouts and builds the
// authenticated push URLs mirror publishing uses, keeping URL handling in one
// place.
package gitrepo
