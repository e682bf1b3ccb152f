package surface

import "errors"

// ErrNativeUnsupported is returned by NewNative on platforms without overlay windows.
var ErrNativeUnsupported = errors.New("native overlay windows are not supported on this platform")
