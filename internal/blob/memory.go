package blob

import (
	memorystore "buildcore/internal/infra/blob/memory"
)

// NewMemory returns an in-memory blob.Store suitable for tests.
func NewMemory(baseURL string) Store { return memorystore.New(baseURL) }
