package influxdb

import (
	"fmt"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names. ctl_value charts element levels over time;
// ctl_event feeds rate dashboards.
const (
	measurementValue = "ctl_value"
	measurementEvent = "ctl_event"
)

// WriteElementValue records an element's per-channel values as one
// ctl_value point. Each channel becomes a field (ch0, ch1, ...), so a
// stereo volume charts as two series under one element tag.
//
// The element tag is the textual identity without the numid, stable
// across restarts (e.g. "iface=MIXER,name='Master Playback Volume'").
// The numid travels as a field instead, because it changes when the
// element is re-created. Empty value slices are dropped rather than
// written as fieldless points.
func (c *Client) WriteElementValue(element string, numid uint32, values []int64) {
	if !c.IsConnected() || len(values) == 0 {
		return
	}

	fields := make(map[string]any, len(values)+1)
	fields["numid"] = int64(numid)
	for i, v := range values {
		fields[fmt.Sprintf("ch%d", i)] = v
	}

	c.writeAPI.WritePoint(write.NewPoint(
		measurementValue,
		map[string]string{"element": element},
		fields,
		time.Now(),
	))
}

// WriteElementEvent records one ctl_event occurrence, tagged by element
// and kind (value, info, add, remove, tlv). Dashboards sum the count
// field to chart how busy each element is.
func (c *Client) WriteElementEvent(element string, kind string) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		measurementEvent,
		map[string]string{"element": element, "kind": kind},
		map[string]any{"count": 1},
		time.Now(),
	))
}

// WritePoint records an arbitrary measurement. Escape hatch for data the
// element helpers don't cover, such as daemon-level stats. Tags index,
// fields carry the values; keep tag cardinality low.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
