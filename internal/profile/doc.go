// Package profile expands profile references into weighted profiles and
// property values.
//
// A profile reference indexes the profile offset table. A non-negative entry
// is the byte offset of a single profile, which carries the full weight
// 0xFFFF. A negative entry e starts a profile group at index -1-e: entries
// are consumed until their raw weightings sum to exactly 0xFFFF. A sum that
// overshoots, or a group that runs off the end of the table, is corrupt data.
//
// Group entries with the null profile offset contribute weight but no
// values.
package profile
