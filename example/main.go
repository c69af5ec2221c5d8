package main

import (
	"fmt"
	"log"
	"os"

	"github.com/aluketa/hedgehog"
)

func main() {
	dir, err := os.MkdirTemp("", "hedgehog-example")
	if err != nil {
		log.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	m, err := hedgehog.NewMap[int64, int64](hedgehog.Options{
		DataPath:          dir,
		Name:              "example",
		Persistent:        true,
		ConcurrencyFactor: 4,
	}, hedgehog.GobCodec[int64]{}, hedgehog.GobCodec[int64]{})
	if err != nil {
		log.Fatalf("Failed to open map: %v", err)
	}
	defer m.Close()

	fmt.Println("Map opened successfully")

	for i := int64(0); i < 10; i++ {
		if _, _, err := m.Put(i, i*100); err != nil {
			log.Fatalf("Failed to insert key %d: %v", i, err)
		}
	}

	fmt.Println("Inserted 10 key-value pairs")

	for i := int64(0); i < 15; i += 2 {
		value, found, err := m.Get(i)
		if err != nil {
			log.Fatalf("Failed to get key %d: %v", i, err)
		}
		if found {
			fmt.Printf("Key %d => Value %d\n", i, value)
		} else {
			fmt.Printf("Key %d not found\n", i)
		}
	}

	previous, had, err := m.Put(2, 999)
	if err != nil {
		log.Fatalf("Failed to update key: %v", err)
	}
	fmt.Printf("Updated key 2 (was present: %v, previous value: %d)\n", had, previous)

	value, found, err := m.Get(2)
	if err != nil {
		log.Fatalf("Failed to get key 2: %v", err)
	}
	if found {
		fmt.Printf("Updated key 2 => Value %d\n", value)
	}

	size, err := m.Size()
	if err != nil {
		log.Fatalf("Failed to get size: %v", err)
	}
	fmt.Printf("Map holds %d entries\n", size)

	if err := m.Compact(); err != nil {
		log.Fatalf("Failed to compact: %v", err)
	}
	fmt.Println("Compacted map")

	fmt.Println("Example completed successfully")
}
