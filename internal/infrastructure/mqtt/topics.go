package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultBaseTopic is the topic root used when mqtt.base_topic is not set.
const DefaultBaseTopic = "ctlremap"

// Topics builds MQTT topic strings for the daemon.
//
// All topics live under a configurable base (mqtt.base_topic). The zero
// value uses DefaultBaseTopic, so Topics{} works for the common case:
//
//	topics := mqtt.NewTopics(cfg.BaseTopic)
//	valueTopic := topics.ElementValue(42)
//	// Returns: "ctlremap/element/42/value"
//
// Topic hierarchy:
//
//	<base>/element/<numid>/value    retained, current element value
//	<base>/element/<numid>/info     retained, element descriptor
//	<base>/element/<numid>/set      inbound write commands
//	<base>/event/<kind>             event stream (value, info, add, remove, tlv)
//	<base>/system/status            retained, online/offline with LWT
type Topics struct {
	base string
}

// NewTopics returns a Topics builder rooted at base.
// An empty base falls back to DefaultBaseTopic.
func NewTopics(base string) Topics {
	return Topics{base: base}
}

func (t Topics) prefix() string {
	if t.base == "" {
		return DefaultBaseTopic
	}
	return t.base
}

// =============================================================================
// Element Topics
// =============================================================================

// ElementValue returns the retained value topic for an element.
// The payload is the element's current value as JSON.
//
// Example: ctlremap/element/42/value
func (t Topics) ElementValue(numid uint32) string {
	return fmt.Sprintf("%s/element/%d/value", t.prefix(), numid)
}

// ElementInfo returns the retained descriptor topic for an element.
// The payload describes the element's type, count, range and access.
//
// Example: ctlremap/element/42/info
func (t Topics) ElementInfo(numid uint32) string {
	return fmt.Sprintf("%s/element/%d/info", t.prefix(), numid)
}

// ElementSet returns the inbound write topic for an element.
// Other services publish here to change the element's value.
//
// Example: ctlremap/element/42/set
func (t Topics) ElementSet(numid uint32) string {
	return fmt.Sprintf("%s/element/%d/set", t.prefix(), numid)
}

// ParseElementSet extracts the element numid from a set topic.
// It returns false when the topic is not an element set topic under
// this builder's base.
func (t Topics) ParseElementSet(topic string) (uint32, bool) {
	rest, ok := strings.CutPrefix(topic, t.prefix()+"/element/")
	if !ok {
		return 0, false
	}
	numidStr, ok := strings.CutSuffix(rest, "/set")
	if !ok {
		return 0, false
	}
	numid, err := strconv.ParseUint(numidStr, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(numid), true
}

// =============================================================================
// Event Topics
// =============================================================================

// Event returns the event stream topic for an event kind.
// Kinds follow the history vocabulary: value, info, add, remove, tlv.
//
// Example: ctlremap/event/value
func (t Topics) Event(kind string) string {
	return fmt.Sprintf("%s/event/%s", t.prefix(), kind)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the daemon status topic. The broker publishes the
// Last Will here when the daemon disconnects unexpectedly.
//
// Example: ctlremap/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix())
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllElementValues returns a pattern matching every element value topic.
//
// Pattern: ctlremap/element/+/value
func (t Topics) AllElementValues() string {
	return fmt.Sprintf("%s/element/+/value", t.prefix())
}

// AllElementSets returns a pattern matching every element set topic.
// The daemon subscribes to this to accept inbound writes.
//
// Pattern: ctlremap/element/+/set
func (t Topics) AllElementSets() string {
	return fmt.Sprintf("%s/element/+/set", t.prefix())
}

// AllEvents returns a pattern matching the whole event stream.
//
// Pattern: ctlremap/event/+
func (t Topics) AllEvents() string {
	return fmt.Sprintf("%s/event/+", t.prefix())
}

// AllTopics returns a pattern matching every daemon topic.
// Use with caution - this receives ALL traffic.
//
// Pattern: ctlremap/#
func (t Topics) AllTopics() string {
	return fmt.Sprintf("%s/#", t.prefix())
}
