package epochs

import "errors"

var errNilEpoch = errors.New("nil epoch descriptor")
