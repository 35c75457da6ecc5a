// Package flock guards an output directory with an exclusive file lock so
// two pipeline runs never write the same artifact set.
//
// Usage:
//
//	lock, err := flock.Acquire(ctx, outDir, 5*time.Second)
//	if err != nil {
//	    // another run owns outDir
//	}
//	defer lock.Release()
package flock
