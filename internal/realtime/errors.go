package realtime

import "errors"

var ErrClosed = errors.New("realtime broker closed")
