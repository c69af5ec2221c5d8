// This file contains benchmarks that test the performance with UUID keys
// and variable-length string values, representing common real-world usage
// patterns.
// It measures:
//   - Insertion performance with UUID keys and string values
//   - Memory usage during operations
//   - Retrieval performance without validation
//   - Validation performance
//   - Storage efficiency (bytes per key-value pair)
package hedgehog_test

import (
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/aluketa/hedgehog"
)

// BenchmarkUUIDKeys evaluates the performance of the map with UUID keys and
// alphanumeric string values.
func BenchmarkUUIDKeys(b *testing.B) {
	b.N = 1
	b.ResetTimer()
	b.StopTimer()

	numKeys := 100_000
	reportInterval := 10_000

	dir, err := os.MkdirTemp("", "hedgehog-bench-uuid")
	if err != nil {
		b.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	b.Log("Opening map...")
	runtime.GC()

	setupStart := time.Now()
	m, err := hedgehog.NewMap[string, string](hedgehog.Options{
		DataPath:          dir,
		Name:              "uuid",
		Persistent:        true,
		ConcurrencyFactor: 1,
	}, hedgehog.GobCodec[string]{}, hedgehog.GobCodec[string]{})
	if err != nil {
		b.Fatalf("Failed to open map: %v", err)
	}
	b.Logf("Map opened in %v", time.Since(setupStart))

	dataFile := dir + "/map-uuid.hdg"

	keys := make([]string, numKeys)
	values := make([]string, numKeys)

	b.Logf("Starting insertion of %d UUID keys with 100-char values...", numKeys)
	b.StartTimer()
	writeStart := time.Now()

	for i := 0; i < numKeys; i++ {
		key := string(generateUUID())
		value := generateAlphanumeric(100)

		keys[i] = key
		values[i] = value

		if _, _, err := m.Put(key, value); err != nil {
			b.Fatalf("Failed to insert key %d: %v", i, err)
		}

		if (i+1)%reportInterval == 0 {
			b.StopTimer()
			elapsed := time.Since(writeStart)
			rate := float64(i+1) / elapsed.Seconds()
			mem := getMemoryStats()
			b.Logf("Inserted %d keys... (%.2f keys/sec, alloc=%.1fMB)", i+1, rate, mem["alloc_mb"])
			b.StartTimer()
		}
	}

	b.StopTimer()
	writeTime := time.Since(writeStart)
	b.Logf("Time to insert %d UUID keys: %v (%.2f keys/sec)",
		numKeys, writeTime, float64(numKeys)/writeTime.Seconds())

	runtime.GC()

	b.Log("Retrieving all values (without validation during retrieval)...")
	b.StartTimer()
	retrieveStart := time.Now()

	for i := 0; i < numKeys; i++ {
		if _, found, err := m.Get(keys[i]); err != nil || !found {
			b.Fatalf("Key %d not found: err=%v", i, err)
		}

		if (i+1)%reportInterval == 0 {
			b.StopTimer()
			elapsed := time.Since(retrieveStart)
			rate := float64(i+1) / elapsed.Seconds()
			b.Logf("Retrieved %d keys... (%.2f keys/sec)", i+1, rate)
			b.StartTimer()
		}
	}

	b.StopTimer()
	retrieveTime := time.Since(retrieveStart)
	b.Logf("Time to retrieve %d UUID keys (without validation): %v (%.2f keys/sec)",
		numKeys, retrieveTime, float64(numKeys)/retrieveTime.Seconds())

	b.Log("Validating all values...")
	b.StartTimer()
	validateStart := time.Now()

	validationErrors := 0
	for i := 0; i < numKeys; i++ {
		val, found, err := m.Get(keys[i])
		if err != nil || !found {
			b.Fatalf("Key %d not found during validation: err=%v", i, err)
		}
		if val != values[i] {
			validationErrors++
		}

		if (i+1)%reportInterval == 0 {
			b.StopTimer()
			elapsed := time.Since(validateStart)
			rate := float64(i+1) / elapsed.Seconds()
			b.Logf("Validated %d keys... (%.2f keys/sec)", i+1, rate)
			b.StartTimer()
		}
	}

	b.StopTimer()
	validateTime := time.Since(validateStart)
	b.Logf("Time to validate %d UUID keys: %v (%.2f keys/sec)",
		numKeys, validateTime, float64(numKeys)/validateTime.Seconds())

	if validationErrors > 0 {
		b.Errorf("Found %d validation errors", validationErrors)
	} else {
		b.Logf("All values validated successfully")
	}

	if err := m.Force(); err != nil {
		b.Fatalf("Force failed: %v", err)
	}
	if err := m.Close(); err != nil {
		b.Fatalf("Close failed: %v", err)
	}

	fileInfo, err := os.Stat(dataFile)
	if err != nil {
		b.Fatalf("Failed to get file stats: %v", err)
	}

	b.Logf("Data file size for %d UUID keys: %.2f MB", numKeys, float64(fileInfo.Size())/(1024*1024))
	b.Logf("Average bytes per key-value pair: %.2f bytes", float64(fileInfo.Size())/float64(numKeys))
	b.Logf("UUID keys benchmark completed successfully")
}
