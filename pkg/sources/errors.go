package sources

import "errors"

// ErrAuthExpired signals that the orchestrator's own session with the
// configuration API has expired. It is a global condition, distinct from
// any single source's fetch failure, and callers should redirect the
// operator to re-authenticate instead of recording it on a source.
var ErrAuthExpired = errors.New("authentication expired")
