package replicator

import "github.com/hrefhref/sanoid/capability"

const defaultTool = "sanoid-sync"

// Config holds the run-wide options the CLI layer parses, grounded on
// job/config.go's Config/ApplyDefaults shape.
type Config struct {
	Tool            string
	Debug           bool
	NoCommandChecks bool
	Compressor      capability.Compressor
	SourceBwlimit   string
	TargetBwlimit   string
	DumpSnapshots   bool
	Recursive       bool
}

// ApplyDefaults fills in the fields a bare Config leaves zero; only Tool
// is defaulted. Compressor is left as given: its zero value is
// CompressorNone, and the lzo default comes from the CLI's --compress
// flag, resolved through capability.ParseCompressor.
func (c *Config) ApplyDefaults() {
	if c.Tool == "" {
		c.Tool = defaultTool
	}
}
