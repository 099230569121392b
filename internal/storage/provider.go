package storage

import "lectern/internal/ports"

// Store is the media storage contract used by the API, the CLI and the
// core components. It aliases ports.MediaStore to keep call-sites short.
type Store = ports.MediaStore
