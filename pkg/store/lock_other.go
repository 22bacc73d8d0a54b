//go:build !unix && !windows

package store

import "os"

// Platforms without advisory locking run unlocked.
func tryLock(f *os.File) error { return nil }

func unlock(f *os.File) error { return nil }
