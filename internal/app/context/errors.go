package context

import "errors"

// ErrNoThread is returned by Install when the context carries no managed
// thread to install onto.
var ErrNoThread = errors.New("no managed thread bound to context")
