// Package reqid provides request identifier generation.
//
// Identifiers are ULIDs: lexicographically sortable, millisecond
// timestamped, and collision-resistant, which makes correlating log
// lines across a restart cycle straightforward.
package reqid
