// Package capability probes source, target, and local machines for the
// optional helper binaries (the chosen compressor, mbuffer, pv) the
// pipeline assembler may use, per spec.md §4.4.
//
// New code: the teacher has no analogous component, but it is built the
// same way vansante-go-zfsutils/zfs.go wraps a single shell command and
// interprets its exit status (here, `ls <path>` via executor.Executor).
package capability

import (
	"context"

	"github.com/hrefhref/sanoid/executor"
)

// Compressor identifies which external compressor a pipeline stage uses.
type Compressor string

const (
	CompressorNone Compressor = ""
	CompressorGzip Compressor = "gzip"
	CompressorLZO  Compressor = "lzo"
)

// binaries maps a compressor selection to the {compress, decompress}
// binary paths spec.md §4.4 names.
var binaries = map[Compressor][2]string{
	CompressorGzip: {"/bin/gzip", "/bin/zcat"},
	CompressorLZO:  {"/usr/bin/lzop", "/usr/bin/lzop"},
}

// ParseCompressor maps a --compress flag value to a Compressor, per
// spec.md §4.4/§6: "none"/"no"/"0" or anything unrecognized disables
// compression (the caller is expected to warn on the unrecognized case).
func ParseCompressor(value string) (c Compressor, recognized bool) {
	switch value {
	case "", "none", "no", "0":
		return CompressorNone, true
	case "gzip":
		return CompressorGzip, true
	case "lzo":
		return CompressorLZO, true
	default:
		return CompressorNone, false
	}
}

// Location identifies one of the three machines a pipeline may touch.
type Location string

const (
	LocationSource Location = "source"
	LocationTarget Location = "target"
	LocationLocal  Location = "local"
)

// Set records which helpers are present at which locations.
type Set struct {
	Compressor map[Location]bool
	Mbuffer    map[Location]bool
	Pv         bool // only ever probed/used on the local machine
}

// mbufferPath and pvPath are the conventional install locations probed
// with `ls`, the same style spec.md §4.4 describes for the original tool.
const (
	mbufferPath = "/usr/bin/mbuffer"
	pvPath      = "/usr/bin/pv"
)

func has(ctx context.Context, exec_ executor.Executor, target executor.Target, path string) bool {
	_, err := exec_.Run(ctx, target, false, []string{"ls", path})
	return err == nil
}

// Probe runs the capability checks against source, target and the local
// machine. When assumeAll is true (spec.md's --nocommandchecks), every
// capability is reported present without running any command.
func Probe(ctx context.Context, exec_ executor.Executor, compressor Compressor, source, target executor.Target, assumeAll bool) Set {
	s := Set{
		Compressor: make(map[Location]bool, 3),
		Mbuffer:    make(map[Location]bool, 3),
	}

	if assumeAll {
		for _, loc := range []Location{LocationSource, LocationTarget, LocationLocal} {
			s.Compressor[loc] = true
			s.Mbuffer[loc] = true
		}
		s.Pv = true
		return s
	}

	bins, compressing := binaries[compressor]

	locations := map[Location]executor.Target{
		LocationSource: source,
		LocationTarget: target,
		LocationLocal:  {},
	}

	for loc, t := range locations {
		if compressing {
			s.Compressor[loc] = has(ctx, exec_, t, bins[0])
		}
		s.Mbuffer[loc] = has(ctx, exec_, t, mbufferPath)
	}

	s.Pv = has(ctx, exec_, executor.Target{}, pvPath)

	return s
}

// CompressionEnabled reports whether compression may be used for a
// pipeline touching the given locations, per spec.md §4.4: every location
// the pipeline compresses/decompresses at must have the compressor.
func (s Set) CompressionEnabled(compressor Compressor, locations ...Location) bool {
	if compressor == CompressorNone {
		return false
	}
	for _, loc := range locations {
		if !s.Compressor[loc] {
			return false
		}
	}
	return true
}

// MbufferEnabled reports whether mbuffer may be used at loc.
func (s Set) MbufferEnabled(loc Location) bool {
	return s.Mbuffer[loc]
}
