package store

import "nof0-core/internal/model"

// ErrNotFound is returned when a lookup finds no row. It's re-exported
// so callers don't need to import internal/model directly.
var ErrNotFound = model.ErrNotFound
