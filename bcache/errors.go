package bcache

import "errors"

// ErrNoBuffers is returned when every slot is referenced and no free
// pool can supply a victim. The condition clears once some holder
// calls Release, so callers may retry.
var ErrNoBuffers = errors.New("bcache: no free buffers")
