// Package plugin is the typed hook bus of spec §4.10: a small set of
// capability interfaces a host process can implement to observe or
// redirect the link, plus the Bus that runs them at the right points in
// the pipeline and enforces the fragment-movement verification rule.
package plugin

import (
	"fmt"

	"github.com/eldlink/eld/pkg/link/section"
)

// LinkEvent is the link-state enum OutputSectionIterator visits against
// (spec §4.10).
type LinkEvent int

const (
	BeforeLayout LinkEvent = iota
	CreatingSections
	CreatingSegments
	AfterLayout
)

func (e LinkEvent) String() string {
	switch e {
	case CreatingSections:
		return "CreatingSections"
	case CreatingSegments:
		return "CreatingSegments"
	case AfterLayout:
		return "AfterLayout"
	default:
		return "BeforeLayout"
	}
}

// SectionIterator visits every input section once (spec §4.10).
type SectionIterator interface {
	VisitSection(s *section.Section)
}

// SectionMatcher is a SectionIterator that may additionally override the
// rule/output the matcher (C5) already chose for a section.
type SectionMatcher interface {
	SectionIterator
	// MatchSection returns the output-section name to redirect s into, or
	// "" to leave the matcher's own decision in place.
	MatchSection(s *section.Section) string
}

// OutputSectionIterator visits every output section once per LinkEvent.
type OutputSectionIterator interface {
	VisitOutputSection(ev LinkEvent, o *section.OutputSectionEntry)
}

// Block is one file-size or memory-size-control unit: a contiguous region
// of output-section content a plugin may resize or move (spec §4.10:
// "Block { data, size, address, name, alignment }").
type Block struct {
	Data      []byte
	Size      uint64
	Address   uint64
	Name      string
	Alignment uint64
}

// ControlFileSizePlugin re-partitions an output section's file-resident
// blocks (spec §4.10).
type ControlFileSizePlugin interface {
	ControlFileSize(outputSection string, blocks []Block) ([]Block, error)
}

// ControlMemorySizePlugin re-partitions an output section's memory-resident
// blocks (spec §4.10); distinct from ControlFileSizePlugin because a
// SHT_NOBITS section has memory blocks with no file-resident bytes.
type ControlMemorySizePlugin interface {
	ControlMemorySize(outputSection string, blocks []Block) ([]Block, error)
}

// LinkerPlugin carries the LTO callback set spec §4.10 lists
// ("override_module_hash, modify_lto_options, act_before_lto,
// read_symbols").
type LinkerPlugin interface {
	OverrideModuleHash(module string) (string, bool)
	ModifyLTOOptions(opts []string) []string
	ActBeforeLTO()
	ReadSymbols(module string) []string
}

// Plugin is the umbrella registration unit: a plugin implements whichever
// capability interfaces it needs (Go's implicit interface satisfaction
// stands in for spec §4.10's "each a capability interface" without a
// closed sum type, since the host process supplies these, not this
// module). Init/Run/Destroy are the three lifecycle calls every plugin
// receives regardless of which capabilities it implements.
type Plugin interface {
	Name() string
	Init(args []string) error
	Run() error
	Destroy()
}

// moveRecord is one fragment relocation a registered plugin reported
// during CreatingSections.
type moveRecord struct {
	plugin string
	from   string
	to     string
}

// Bus owns the registered plugins and runs the typed hooks against them
// in registration order, matching the teacher's ordered-slice-of-handlers
// style (cmd/root.go registers subcommands the same way) rather than a
// map with unspecified iteration order.
type Bus struct {
	plugins []Plugin
	moves   map[string][]moveRecord
}

// NewBus returns an empty hook bus.
func NewBus() *Bus {
	return &Bus{moves: make(map[string][]moveRecord)}
}

// Register adds a plugin and calls its Init hook (spec §4.10's
// "init -> run -> destroy" lifecycle, step 1).
func (b *Bus) Register(p Plugin, args []string) error {
	if err := p.Init(args); err != nil {
		return fmt.Errorf("plugin: %s Init failed: %w", p.Name(), err)
	}
	b.plugins = append(b.plugins, p)
	return nil
}

// Run invokes every registered plugin's Run hook (lifecycle step 2).
func (b *Bus) Run() error {
	for _, p := range b.plugins {
		if err := p.Run(); err != nil {
			return fmt.Errorf("plugin: %s Run failed: %w", p.Name(), err)
		}
	}
	return nil
}

// Destroy invokes every registered plugin's Destroy hook (lifecycle step
// 3), best-effort: it runs all of them even if called after a failed
// Run, since a half-initialized plugin still owns resources to release.
func (b *Bus) Destroy() {
	for _, p := range b.plugins {
		p.Destroy()
	}
}

// VisitSections runs every registered SectionIterator (and, where a
// plugin also implements SectionMatcher, applies its override) over every
// input section the section map currently owns.
func (b *Bus) VisitSections(sections []*section.Section, sm *section.SectionMap) {
	for _, p := range b.plugins {
		it, ok := p.(SectionIterator)
		if !ok {
			continue
		}
		for _, s := range sections {
			it.VisitSection(s)
			if m, ok := p.(SectionMatcher); ok {
				if name := m.MatchSection(s); name != "" {
					sm.GetOrCreate(name).AddSection(s)
				}
			}
		}
	}
}

// VisitOutputSections runs every registered OutputSectionIterator for ev
// over every output section.
func (b *Bus) VisitOutputSections(ev LinkEvent, sm *section.SectionMap) {
	for _, p := range b.plugins {
		it, ok := p.(OutputSectionIterator)
		if !ok {
			continue
		}
		for _, o := range sm.Entries() {
			it.VisitOutputSection(ev, o)
		}
	}
}

// RecordMove registers that pluginName reported moving a fragment from one
// output section to another during CreatingSections (spec §4.10: "Fragment
// movements must be reported via a verification call at the end of
// CreatingSections").
func (b *Bus) RecordMove(pluginName, from, to string) {
	b.moves[pluginName] = append(b.moves[pluginName], moveRecord{plugin: pluginName, from: from, to: to})
}

// VerifyMoves is the end-of-CreatingSections verification call: every
// fragment a plugin actually relocated (observed by comparing each output
// section's membership before and after CreatingSections) must have a
// matching RecordMove entry, or the link fails (spec §4.10: "unreported
// moves are a link error").
func (b *Bus) VerifyMoves(observed map[string]string) error {
	reported := make(map[string]bool, len(b.moves))
	for _, records := range b.moves {
		for _, m := range records {
			reported[m.from+"->"+m.to] = true
		}
	}
	for from, to := range observed {
		if from == to {
			continue
		}
		if !reported[from+"->"+to] {
			return fmt.Errorf("plugin: unreported fragment movement from %s to %s", from, to)
		}
	}
	return nil
}

// ControlFileSizes runs every registered ControlFileSizePlugin over an
// output section's blocks, chaining each plugin's re-partitioned result
// into the next (spec §4.10: "the engine replaces that output section's
// contents accordingly").
func (b *Bus) ControlFileSizes(outputSection string, blocks []Block) ([]Block, error) {
	for _, p := range b.plugins {
		cp, ok := p.(ControlFileSizePlugin)
		if !ok {
			continue
		}
		next, err := cp.ControlFileSize(outputSection, blocks)
		if err != nil {
			return nil, fmt.Errorf("plugin: %s ControlFileSize failed on %s: %w", p.Name(), outputSection, err)
		}
		blocks = next
	}
	return blocks, nil
}

// ControlMemorySizes is ControlFileSizes' memory-region counterpart.
func (b *Bus) ControlMemorySizes(outputSection string, blocks []Block) ([]Block, error) {
	for _, p := range b.plugins {
		cp, ok := p.(ControlMemorySizePlugin)
		if !ok {
			continue
		}
		next, err := cp.ControlMemorySize(outputSection, blocks)
		if err != nil {
			return nil, fmt.Errorf("plugin: %s ControlMemorySize failed on %s: %w", p.Name(), outputSection, err)
		}
		blocks = next
	}
	return blocks, nil
}

// LinkerPlugins returns every registered plugin that also implements
// LinkerPlugin, in registration order. Neither the LTO bridge nor
// pkg/link calls it.
func (b *Bus) LinkerPlugins() []LinkerPlugin {
	var out []LinkerPlugin
	for _, p := range b.plugins {
		if lp, ok := p.(LinkerPlugin); ok {
			out = append(out, lp)
		}
	}
	return out
}
