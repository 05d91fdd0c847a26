package memory

import (
	"testing"

	"marketScope/internal/storage"
	"marketScope/internal/storage/storetest"
)

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.Store {
		return New()
	})
}
