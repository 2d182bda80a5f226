//go:build !unix

package store

// lockPath is a no-op where flock is unavailable; writers in the same
// process are still serialized by the manager.
func lockPath(string) (func(), error) {
	return func() {}, nil
}
