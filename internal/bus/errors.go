package bus

import "errors"

var errSocketClosed = errors.New("bus: socket is closed")
