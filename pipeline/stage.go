// Package pipeline assembles the shell pipeline that connects `zfs send`
// on the source to `zfs receive` on the target, per spec.md §4.7: a
// tagged-variant stage list, composed per topology, rendered as a single
// shell command line with remote legs embedded as quoted `ssh` segments.
//
// New code. The stage/hop shape is grounded on the teacher's io.go
// pipe-chaining helpers (rateLimitWriter, CountReader) for what each
// stage's job is, generalized here to out-of-process commands strung
// together with shell pipes instead of in-process io.Writer wrapping,
// because the spec's helpers (mbuffer, pv, the chosen compressor) are
// external binaries, not Go packages.
package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hrefhref/sanoid/capability"
)

// StageKind identifies one command in a pipeline hop.
type StageKind int

const (
	StageSend StageKind = iota
	StageReceive
	StageCompress
	StageDecompress
	StageMbuffer
	StagePv
)

// MbufferSide records which bandwidth limit flag an mbuffer stage should
// carry, per spec.md open question (a): `-R` for the source-side limiter,
// `-r` for the target-side one; a local-only mbuffer takes whichever of
// the two was given, with no fixed flag of its own.
type MbufferSide int

const (
	MbufferSource MbufferSide = iota
	MbufferTarget
)

// Stage is one command in a pipeline hop. Only the fields relevant to
// Kind are meaningful.
type Stage struct {
	Kind StageKind

	// StageSend / StageReceive
	Dataset string
	From    string // StageSend only; empty means a full send
	To      string // StageSend only
	Force   bool   // StageReceive only

	// StageCompress / StageDecompress
	Compressor capability.Compressor

	// StageMbuffer
	Side    MbufferSide
	Bwlimit string // empty disables the flag entirely

	// StagePv
	EstimatedBytes int64

	// NeedsRoot prefixes the rendered command with sudo.
	NeedsRoot bool
}

func (s Stage) argv() []string {
	switch s.Kind {
	case StageSend:
		args := []string{"zfs", "send"}
		if s.From != "" {
			args = append(args, "-I", fmt.Sprintf("%s@%s", s.Dataset, s.From))
		}
		return append(args, fmt.Sprintf("%s@%s", s.Dataset, s.To))

	case StageReceive:
		args := []string{"zfs", "receive"}
		if s.Force {
			args = append(args, "-F")
		}
		return append(args, s.Dataset)

	case StageCompress:
		return compressorArgv(s.Compressor, true)

	case StageDecompress:
		return compressorArgv(s.Compressor, false)

	case StageMbuffer:
		args := []string{"mbuffer", "-q", "-s", "128k", "-m", "16M"}
		if s.Bwlimit != "" {
			flag := "-R"
			if s.Side == MbufferTarget {
				flag = "-r"
			}
			args = append(args, flag, s.Bwlimit)
		}
		return args

	case StagePv:
		if s.EstimatedBytes > 0 {
			return []string{"pv", "-s", strconv.FormatInt(s.EstimatedBytes, 10)}
		}
		return []string{"pv"}

	default:
		return nil
	}
}

// compressorArgv returns the argv for the chosen compressor's compress
// or decompress side, per spec.md §4.4.
func compressorArgv(c capability.Compressor, compress bool) []string {
	switch c {
	case capability.CompressorGzip:
		if compress {
			return []string{"gzip", "-3"}
		}
		return []string{"zcat"}
	case capability.CompressorLZO:
		if compress {
			return []string{"lzop"}
		}
		return []string{"lzop", "-dfc"}
	default:
		return nil
	}
}

func (s Stage) render() string {
	argv := s.argv()
	if s.NeedsRoot {
		argv = append([]string{"sudo"}, argv...)
	}
	return quoteArgv(argv)
}

// shellSafe matches arguments that need no quoting at all: dataset paths,
// snapshot names, and the flags/sizes this package ever emits.
var shellSafe = regexp.MustCompile(`^[A-Za-z0-9@/:_.,=+-]+$`)

func quoteArg(arg string) string {
	if arg != "" && shellSafe.MatchString(arg) {
		return arg
	}
	if arg == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}

func quoteArgv(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = quoteArg(a)
	}
	return strings.Join(quoted, " ")
}
