// Command vfddump decodes and prints a metadata file's Header and
// Index for offline inspection, without driving any ticks.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"vfdswmr/mdfile"
)

type dumpOutput struct {
	Header interface{} `json:"header"`
	Index  interface{} `json:"index"`
}

func main() {
	path := flag.String("path", "", "path to the metadata file to dump")
	flag.Parse()
	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: vfddump -path <metadata-file>")
		os.Exit(2)
	}

	handle, err := mdfile.Open(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vfddump: open %s: %v\n", *path, err)
		os.Exit(1)
	}
	defer handle.Close()

	hdr, entries, err := handle.ReadTick()
	if err != nil {
		fmt.Fprintf(os.Stderr, "vfddump: read %s: %v\n", *path, err)
		os.Exit(1)
	}

	out := dumpOutput{Header: hdr, Index: entries}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "vfddump: encode: %v\n", err)
		os.Exit(1)
	}
}
