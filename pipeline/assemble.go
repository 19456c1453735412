package pipeline

import (
	"fmt"
	"strings"

	"github.com/hrefhref/sanoid/capability"
	"github.com/hrefhref/sanoid/executor"
	"github.com/hrefhref/sanoid/planner"
)

// Hop is one contiguous run of stages executing on a single machine: the
// local one, or a remote one reached over Target's SSH control socket.
type Hop struct {
	Target executor.Target
	Stages []Stage
}

func (h Hop) render() string {
	parts := make([]string, len(h.Stages))
	for i, s := range h.Stages {
		parts[i] = s.render()
	}
	body := strings.Join(parts, " | ")

	if h.Target.IsLocal() {
		return body
	}
	return fmt.Sprintf("ssh -S %s %s@%s %s", h.Target.ControlSocket, h.Target.User, h.Target.Host, quoteArg(body))
}

// Params describes one send step to assemble into a pipeline command.
type Params struct {
	SourceDataset string
	TargetDataset string
	Source        executor.Target
	Target        executor.Target
	Step          planner.SendStep
	Capabilities  capability.Set
	Compressor    capability.Compressor
	SourceBwlimit string
	TargetBwlimit string
	// EstimatedBytes is the dry-run send size estimate, or 0 when
	// unavailable (spec.md §7 EstimateUnavailable); Stage renders a bare
	// `pv` with no -s flag in that case.
	EstimatedBytes int64
}

func (p Params) sendStage() Stage {
	return Stage{
		Kind:      StageSend,
		Dataset:   p.SourceDataset,
		From:      p.Step.From,
		To:        p.Step.To,
		NeedsRoot: !p.Source.IsRoot,
	}
}

func (p Params) receiveStage() Stage {
	return Stage{
		Kind:      StageReceive,
		Dataset:   p.TargetDataset,
		Force:     p.Step.Force,
		NeedsRoot: !p.Target.IsRoot,
	}
}

func (p Params) compressStage() Stage {
	return Stage{Kind: StageCompress, Compressor: p.Compressor}
}

func (p Params) decompressStage() Stage {
	return Stage{Kind: StageDecompress, Compressor: p.Compressor}
}

func (p Params) mbufferStage(side MbufferSide) Stage {
	bwlimit := p.SourceBwlimit
	if side == MbufferTarget {
		bwlimit = p.TargetBwlimit
	}
	return Stage{Kind: StageMbuffer, Side: side, Bwlimit: bwlimit}
}

func (p Params) pvStage() Stage {
	return Stage{Kind: StagePv, EstimatedBytes: p.EstimatedBytes}
}

// Assemble builds the full shell command line for one send step, per
// spec.md §4.7, dispatching on which of source/target are local.
func Assemble(p Params) string {
	sourceLocal := p.Source.IsLocal()
	targetLocal := p.Target.IsLocal()

	var hops []Hop
	switch {
	case sourceLocal && targetLocal:
		hops = []Hop{p.localToLocal()}
	case sourceLocal && !targetLocal:
		hops = []Hop{p.localSenderHop(), p.remoteReceiverHop()}
	case !sourceLocal && targetLocal:
		hops = []Hop{p.remoteSenderHop(), p.localReceiverHop()}
	default:
		hops = []Hop{p.remoteSenderHop(), p.localIntermediateHop(), p.remoteReceiverHop()}
	}

	segments := make([]string, len(hops))
	for i, h := range hops {
		segments[i] = h.render()
	}
	return strings.Join(segments, " | ")
}

// localToLocal builds the single-hop pipeline for a local source and
// local target: compression is never used since no network hop exists;
// a single mbuffer carries whichever of source/target bwlimit was given;
// pv sits directly between mbuffer and receive.
func (p Params) localToLocal() Hop {
	stages := []Stage{p.sendStage()}

	if p.Capabilities.MbufferEnabled(capability.LocationLocal) {
		side := MbufferSource
		bwlimit := p.SourceBwlimit
		if bwlimit == "" {
			side, bwlimit = MbufferTarget, p.TargetBwlimit
		}
		stages = append(stages, Stage{Kind: StageMbuffer, Side: side, Bwlimit: bwlimit})
	}
	if p.Capabilities.Pv {
		stages = append(stages, p.pvStage())
	}
	stages = append(stages, p.receiveStage())

	return Hop{Target: executor.Target{}, Stages: stages}
}

func (p Params) compressLocations() []capability.Location {
	locs := []capability.Location{capability.LocationSource, capability.LocationTarget}
	if !p.Source.IsLocal() && !p.Target.IsLocal() {
		locs = append(locs, capability.LocationLocal)
	}
	return locs
}

func (p Params) compressEnabled() bool {
	return p.Capabilities.CompressionEnabled(p.Compressor, p.compressLocations()...)
}

// localSenderHop builds the sender hop when the source is local: send,
// pv, compress, mbuffer (spec.md §4.7 local→remote case).
func (p Params) localSenderHop() Hop {
	stages := []Stage{p.sendStage()}
	if p.Capabilities.Pv {
		stages = append(stages, p.pvStage())
	}
	if p.compressEnabled() {
		stages = append(stages, p.compressStage())
	}
	if p.Capabilities.MbufferEnabled(capability.LocationSource) {
		stages = append(stages, p.mbufferStage(MbufferSource))
	}
	return Hop{Target: executor.Target{}, Stages: stages}
}

// remoteSenderHop builds the sender hop when the source is remote: send,
// compress, mbuffer.
func (p Params) remoteSenderHop() Hop {
	stages := []Stage{p.sendStage()}
	if p.compressEnabled() {
		stages = append(stages, p.compressStage())
	}
	if p.Capabilities.MbufferEnabled(capability.LocationSource) {
		stages = append(stages, p.mbufferStage(MbufferSource))
	}
	return Hop{Target: p.Source, Stages: stages}
}

// remoteReceiverHop builds the receiver hop when the target is remote:
// mbuffer, decompress, receive.
func (p Params) remoteReceiverHop() Hop {
	var stages []Stage
	if p.Capabilities.MbufferEnabled(capability.LocationTarget) {
		stages = append(stages, p.mbufferStage(MbufferTarget))
	}
	if p.compressEnabled() {
		stages = append(stages, p.decompressStage())
	}
	stages = append(stages, p.receiveStage())
	return Hop{Target: p.Target, Stages: stages}
}

// localReceiverHop builds the receiver hop when the target is local:
// mbuffer, decompress, pv, receive (spec.md §4.7 remote→local case).
func (p Params) localReceiverHop() Hop {
	var stages []Stage
	if p.Capabilities.MbufferEnabled(capability.LocationTarget) {
		stages = append(stages, p.mbufferStage(MbufferTarget))
	}
	if p.compressEnabled() {
		stages = append(stages, p.decompressStage())
	}
	if p.Capabilities.Pv {
		stages = append(stages, p.pvStage())
	}
	stages = append(stages, p.receiveStage())
	return Hop{Target: executor.Target{}, Stages: stages}
}

// localIntermediateHop builds the local relay hop used only when both
// endpoints are remote: decompress, pv, compress, mbuffer (no bwlimit).
func (p Params) localIntermediateHop() Hop {
	var stages []Stage
	if p.compressEnabled() {
		stages = append(stages, p.decompressStage())
	}
	if p.Capabilities.Pv {
		stages = append(stages, p.pvStage())
	}
	if p.compressEnabled() {
		stages = append(stages, p.compressStage())
	}
	if p.Capabilities.MbufferEnabled(capability.LocationLocal) {
		stages = append(stages, Stage{Kind: StageMbuffer})
	}
	return Hop{Target: executor.Target{}, Stages: stages}
}
