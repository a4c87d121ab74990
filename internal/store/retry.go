package store

// Retry calls fn, and if it fails, calls it exactly once more before
// giving up. It exists for callers wrapping read-only operations that
// have no side effect — per the transient-failure contract, those
// reads are retried once before being surfaced to the client (§4.A,
// §7). Plain writes are not wrapped in this, since a retried write could
// double an effect the first attempt actually performed despite
// returning an error; the one write that is wrapped is the hub's
// conditional PatchMatchReport, which only fills a null slot and so
// cannot apply twice.
func Retry[T any](fn func() (T, error)) (T, error) {
	v, err := fn()
	if err == nil {
		return v, nil
	}
	return fn()
}
