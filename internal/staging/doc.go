// Package staging copies discovered recordings into managed storage.
//
// Destinations follow <root>/<subject>/<YYYY-MM-DD>/<hash12>_<name>. Each copy
// holds an advisory lock on its destination, streams through a temporary
// sibling, is renamed into place and then re-hashed; a destination that does
// not match its source is removed and the entry is marked failed. Sources are
// only ever read.
package staging
