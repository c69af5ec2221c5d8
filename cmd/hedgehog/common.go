package main

import "github.com/aluketa/hedgehog"

// mapOptions bundles the flags every subcommand needs to locate a map's
// files on disk.
type mapOptions struct {
	DataPath string
	Name     string
	Shards   int
}

var commonOpts mapOptions

func openMap() (*hedgehog.Map[string, string], error) {
	return hedgehog.NewMap[string, string](hedgehog.Options{
		DataPath:          commonOpts.DataPath,
		Name:              commonOpts.Name,
		Persistent:        true,
		ConcurrencyFactor: commonOpts.Shards,
	}, hedgehog.GobCodec[string]{}, hedgehog.GobCodec[string]{})
}
