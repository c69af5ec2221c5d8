// This file contains large-scale benchmarks that test the performance and
// scalability of the map with millions of entries.
// It measures:
//   - Insertion performance (overall and per batch)
//   - Memory usage during operations
//   - Random lookup performance
//   - Storage efficiency (bytes per key-value pair)
package hedgehog_test

import (
	"os"
	"runtime"
	"testing"
	"time"
)

// BenchmarkTenMillionKeys evaluates the performance and scalability of the
// map by inserting and retrieving 10 million keys. This is a worst-case,
// maximum-scale scenario; skip it in short mode.
func BenchmarkTenMillionKeys(b *testing.B) {
	if testing.Short() {
		b.Skip("skipping ten-million-key benchmark in short mode")
	}

	b.N = 1
	b.ResetTimer()
	b.StopTimer()

	numKeys := 10_000_000
	reportInterval := 500_000

	b.Log("Opening map...")
	setupStart := time.Now()
	m, dataFile := newBenchMap(b, "ten-million")
	defer m.Close()
	b.Logf("Map opened in %v", time.Since(setupStart))

	runtime.GC()

	b.Logf("Starting insertion of %d keys...", numKeys)
	b.StartTimer()
	writeStart := time.Now()

	for i := 0; i < numKeys; i++ {
		if _, _, err := m.Put(uint64(i), uint64(i)); err != nil {
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
	b.Logf("Time to insert %d keys: %v (%.2f keys/sec)",
		numKeys, writeTime, float64(numKeys)/writeTime.Seconds())

	b.Log("Testing random access performance...")
	randomSamples := 100_000
	b.StartTimer()
	randomStart := time.Now()

	for i := 0; i < randomSamples; i++ {
		keyID := uint64((i*104729 + 15485863) % numKeys)

		val, found, err := m.Get(keyID)
		if err != nil || !found {
			b.Fatalf("Random key %d not found: err=%v", keyID, err)
		}
		if i%1000 == 0 && val != keyID {
			b.Fatalf("Value mismatch for key %d: expected %d, got %d", keyID, keyID, val)
		}
	}

	b.StopTimer()
	randomTime := time.Since(randomStart)
	b.Logf("Time to perform %d random lookups: %v (%.2f lookups/sec)",
		randomSamples, randomTime, float64(randomSamples)/randomTime.Seconds())

	if err := m.Force(); err != nil {
		b.Fatalf("Force failed: %v", err)
	}

	fileInfo, err := os.Stat(dataFile)
	if err != nil {
		b.Fatalf("Failed to get file stats: %v", err)
	}

	b.Logf("Data file size for %d keys: %.2f MB", numKeys, float64(fileInfo.Size())/(1024*1024))
	b.Logf("Average bytes per key-value pair: %.2f bytes", float64(fileInfo.Size())/float64(numKeys))
	b.Logf("Ten million key benchmark completed successfully")
}
