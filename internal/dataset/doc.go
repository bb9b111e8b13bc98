// Package dataset loads a data file into an immutable, reference counted
// Dataset.
//
// A Dataset owns the nine collections of the file, the component graphs and
// everything that backs them: a memory span, a read-only mapping, or a pool
// of file handles over the original file or a private temp copy. Loading
// either publishes a complete Dataset or releases everything it built.
//
// Collections are built concurrently. Each build takes a loader slot from the
// resource controller, so the controller's MaxLoaders bounds the number of
// collections read at once.
//
// # Reference counting
//
// A new Dataset holds one reference for its creator. Readers call TryIncRef
// before use and Release afterwards; the Dataset closes when the count
// reaches zero.
//
//	if !ds.TryIncRef() {
//	    return ErrClosed
//	}
//	defer ds.Release()
package dataset
