package memory_test

import (
	"testing"

	"github.com/spigell/bewerbungs-agent/internal/storage/memory"
	"github.com/spigell/bewerbungs-agent/internal/storage/storagetest"
)

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, memory.New())
}
