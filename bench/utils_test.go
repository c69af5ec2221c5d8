package hedgehog_test

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"runtime"
	"testing"

	"github.com/aluketa/hedgehog"
)

// getMemoryStats returns the current memory stats as a map, used to log
// allocator pressure alongside throughput during large-scale benchmarks.
func getMemoryStats() map[string]float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return map[string]float64{
		"alloc_mb": float64(m.Alloc) / (1024 * 1024),
		"sys_mb":   float64(m.Sys) / (1024 * 1024),
	}
}

func newBenchMap(b *testing.B, name string) (*hedgehog.Map[uint64, uint64], string) {
	b.Helper()

	dir, err := os.MkdirTemp("", "hedgehog-bench")
	if err != nil {
		b.Fatalf("Failed to create temp dir: %v", err)
	}
	b.Cleanup(func() { os.RemoveAll(dir) })

	m, err := hedgehog.NewMap[uint64, uint64](hedgehog.Options{
		DataPath:          dir,
		Name:              name,
		Persistent:        true,
		ConcurrencyFactor: 1,
	}, hedgehog.GobCodec[uint64]{}, hedgehog.GobCodec[uint64]{})
	if err != nil {
		b.Fatalf("Failed to open map: %v", err)
	}
	return m, fmt.Sprintf("%s/map-%s.hdg", dir, name)
}

// generateUUID creates a random 16-byte UUID.
func generateUUID() []byte {
	uuid := make([]byte, 16)
	if _, err := rand.Read(uuid); err != nil {
		panic(err)
	}
	uuid[6] = (uuid[6] & 0x0F) | 0x40
	uuid[8] = (uuid[8] & 0x3F) | 0x80
	return uuid
}

// generateAlphanumeric creates a random alphanumeric string of the given length.
func generateAlphanumeric(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			panic(err)
		}
		result[i] = charset[n.Int64()]
	}
	return string(result)
}
