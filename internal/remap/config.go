package remap

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/ctlremap/internal/ctl"
)

// maxChannels bounds destination and source channel indices. The underlying
// control API carries at most 128 channels per element, so anything beyond
// that can never be mapped.
const maxChannels = 128

// Config is the rule set for one proxy. Element identities use the textual
// form understood by ctl.ParseElemID. The section names follow the
// conventional remap plugin vocabulary: remap renames, map merges, sync ties.
type Config struct {
	Renames []RenameRule `yaml:"remap"`
	Merges  []MergeRule  `yaml:"map"`
	Syncs   []SyncRule   `yaml:"sync"`
}

// RenameRule publishes the child element From under the identity To.
type RenameRule struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// MergeRule builds one virtual control from several child elements.
type MergeRule struct {
	ID      string        `yaml:"id"`
	Sources []MergeSource `yaml:"sources"`
}

// MergeSource names one child element of a merge group and how its channels
// feed the virtual control: Channels maps each destination channel to the
// source channel or channels backing it.
type MergeSource struct {
	ID       string                 `yaml:"id"`
	Channels map[uint32]ChannelList `yaml:"channels"`
}

// ChannelList accepts either a single channel number or a list of them.
type ChannelList []uint32

func (c *ChannelList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var n uint32
		if err := node.Decode(&n); err != nil {
			return err
		}
		*c = ChannelList{n}
		return nil
	case yaml.SequenceNode:
		var ns []uint32
		if err := node.Decode(&ns); err != nil {
			return err
		}
		*c = ChannelList(ns)
		return nil
	default:
		return fmt.Errorf("channel entry must be a number or a list of numbers")
	}
}

// SyncRule ties a group of child elements together. The plain YAML form is a
// mapping with an optional switch; a bare list of identities is accepted as
// shorthand for a group without one.
type SyncRule struct {
	Switch   string   `yaml:"switch,omitempty"`
	Controls []string `yaml:"controls"`
}

func (r *SyncRule) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		var ids []string
		if err := node.Decode(&ids); err != nil {
			return err
		}
		*r = SyncRule{Controls: ids}
		return nil
	}
	type plain SyncRule
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*r = SyncRule(p)
	return nil
}

// Empty reports whether the rule set contains no rules at all.
func (c *Config) Empty() bool {
	return c == nil || (len(c.Renames) == 0 && len(c.Merges) == 0 && len(c.Syncs) == 0)
}

// LoadConfig reads and parses a YAML rules file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("remap: read rules file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses a YAML rule set.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	return &cfg, nil
}

// tables is the compiled form of a Config: the lookup structures the proxy
// consults at dispatch time, with virtual numids already minted.
type tables struct {
	rename renameTable
	numids numidTable
	merges []*mergeGroup
	syncs  []*syncGroup
}

// compileRules parses, validates and cross-checks a rule set. All failures
// wrap ErrInvalidConfiguration. Virtual numids are handed out in rule order,
// merge groups first, then sync switches, starting at 1.
func compileRules(cfg *Config) (*tables, error) {
	t := &tables{}

	for _, rule := range cfg.Renames {
		child, err := ctl.ParseElemID(rule.From)
		if err != nil {
			return nil, fmt.Errorf("%w: rename from %q: %v", ErrInvalidConfiguration, rule.From, err)
		}
		app, err := ctl.ParseElemID(rule.To)
		if err != nil {
			return nil, fmt.Errorf("%w: rename to %q: %v", ErrInvalidConfiguration, rule.To, err)
		}
		if t.rename.findApp(app) != nil {
			return nil, fmt.Errorf("%w: duplicate rename target %s", ErrInvalidConfiguration, app)
		}
		if t.rename.findChild(child) != nil {
			return nil, fmt.Errorf("%w: duplicate rename source %s", ErrInvalidConfiguration, child)
		}
		t.rename.entries = append(t.rename.entries, renameEntry{child: child, app: app})
	}

	for _, rule := range cfg.Merges {
		appID, err := ctl.ParseElemID(rule.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: merge id %q: %v", ErrInvalidConfiguration, rule.ID, err)
		}
		if len(rule.Sources) == 0 {
			return nil, fmt.Errorf("%w: merge %s has no sources", ErrInvalidConfiguration, appID)
		}
		g := &mergeGroup{id: appID}
		g.id.Numid = t.numids.mintApp()
		for _, srcRule := range rule.Sources {
			childID, err := ctl.ParseElemID(srcRule.ID)
			if err != nil {
				return nil, fmt.Errorf("%w: merge %s source %q: %v", ErrInvalidConfiguration, appID, srcRule.ID, err)
			}
			src := mergeSource{child: childID}
			if err := src.compileChannels(srcRule.Channels); err != nil {
				return nil, fmt.Errorf("%w: merge %s source %s: %v", ErrInvalidConfiguration, appID, childID, err)
			}
			g.sources = append(g.sources, src)
		}
		t.merges = append(t.merges, g)
	}

	for i, rule := range cfg.Syncs {
		if len(rule.Controls) < 2 {
			return nil, fmt.Errorf("%w: sync group %d needs at least two controls", ErrInvalidConfiguration, i)
		}
		g := &syncGroup{switchState: true}
		for _, s := range rule.Controls {
			id, err := ctl.ParseElemID(s)
			if err != nil {
				return nil, fmt.Errorf("%w: sync control %q: %v", ErrInvalidConfiguration, s, err)
			}
			g.siblings = append(g.siblings, id)
		}
		if rule.Switch != "" {
			id, err := ctl.ParseElemID(rule.Switch)
			if err != nil {
				return nil, fmt.Errorf("%w: sync switch %q: %v", ErrInvalidConfiguration, rule.Switch, err)
			}
			g.hasSwitch = true
			g.switchID = id
			g.switchID.Numid = t.numids.mintApp()
		}
		t.syncs = append(t.syncs, g)
	}

	t.numids.active = len(t.merges) > 0 || len(t.syncs) > 0
	return t, nil
}

// compileChannels turns the per-destination channel lists into the dense
// matrix the value paths walk: one row per destination channel, every row
// padded to the widest source list with -1 in the unused slots.
func (s *mergeSource) compileChannels(channels map[uint32]ChannelList) error {
	if len(channels) == 0 {
		return fmt.Errorf("no channels mapped")
	}
	maxDst := uint32(0)
	srcCount := 1
	for dst, list := range channels {
		if dst >= maxChannels {
			return fmt.Errorf("destination channel %d out of range", dst)
		}
		if len(list) == 0 {
			return fmt.Errorf("destination channel %d has no source channels", dst)
		}
		for _, ch := range list {
			if ch >= maxChannels {
				return fmt.Errorf("source channel %d out of range", ch)
			}
		}
		if dst > maxDst {
			maxDst = dst
		}
		if len(list) > srcCount {
			srcCount = len(list)
		}
	}

	s.srcCount = srcCount
	s.rows = make([][]int32, maxDst+1)
	for i := range s.rows {
		row := make([]int32, srcCount)
		for j := range row {
			row[j] = -1
		}
		s.rows[i] = row
	}
	for dst, list := range channels {
		for j, ch := range list {
			s.rows[dst][j] = int32(ch)
		}
	}
	return nil
}
