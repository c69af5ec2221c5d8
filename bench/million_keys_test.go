// This file contains medium-scale benchmarks that test the performance with
// one million entries, providing insights into real-world usage patterns.
// It measures:
//   - Insertion performance (overall and per batch)
//   - Memory usage during operations
//   - Lookup performance for data verification
//   - Storage efficiency (bytes per key-value pair)
package hedgehog_test

import (
	"os"
	"runtime"
	"testing"
	"time"
)

// BenchmarkMillionKeys evaluates the performance of the map at a medium
// scale with one million numeric keys.
func BenchmarkMillionKeys(b *testing.B) {
	b.N = 1
	b.ResetTimer()
	b.StopTimer()

	numKeys := 1_000_000
	reportInterval := 100_000

	b.Log("Opening map...")
	m, dataFile := newBenchMap(b, "million")
	defer m.Close()

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
			b.Logf("Inserted %d keys... (%.2f keys/sec)", i+1, rate)
			b.StartTimer()
		}
	}

	b.StopTimer()
	writeTime := time.Since(writeStart)
	b.Logf("Time to insert %d keys: %v (%.2f keys/sec)",
		numKeys, writeTime, float64(numKeys)/writeTime.Seconds())

	verifySampleSize := 10_000
	b.Logf("Verifying sample of %d keys...", verifySampleSize)

	b.StartTimer()
	sampleStart := time.Now()
	step := numKeys / verifySampleSize
	for i := 0; i < numKeys; i += step {
		val, found, err := m.Get(uint64(i))
		if err != nil || !found {
			b.Fatalf("Key %d not found: err=%v", i, err)
		}
		if val != uint64(i) {
			b.Fatalf("Value mismatch for key %d: expected %d, got %d", i, i, val)
		}
	}

	b.StopTimer()
	sampleTime := time.Since(sampleStart)
	b.Logf("Time to verify %d sampled keys: %v (%.2f keys/sec)",
		verifySampleSize, sampleTime, float64(verifySampleSize)/sampleTime.Seconds())

	if err := m.Force(); err != nil {
		b.Fatalf("Force failed: %v", err)
	}

	fileInfo, err := os.Stat(dataFile)
	if err != nil {
		b.Fatalf("Failed to get file stats: %v", err)
	}

	b.Logf("Data file size for %d keys: %.2f MB", numKeys, float64(fileInfo.Size())/(1024*1024))
	b.Logf("Average bytes per key-value pair: %.2f bytes", float64(fileInfo.Size())/float64(numKeys))

	mem := getMemoryStats()
	b.Logf("Memory: alloc=%.1fMB sys=%.1fMB", mem["alloc_mb"], mem["sys_mb"])
	b.Logf("Million key benchmark completed successfully")
}
