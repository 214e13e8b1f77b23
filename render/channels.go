package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/wsiserve/wsiserve/wsi"
)

// Channel holds the rendering parameters for one acquisition band plus its
// fetched pixel data.  Channels are created per-request from parsed path
// parameters or a persisted channel group, never mutated after creation
// except to attach the fetched tile.
type Channel struct {
	Index int
	Color [3]float32 // RGB, unit interval
	Min   float32
	Max   float32
	Gamma float32 // neutral = 1

	// Image is attached after the raw tile fetch completes.
	Image *Image
}

// NewChannel builds a channel from already-typed values, e.g. a persisted
// channel-group record.
func NewChannel(index int, hexColor string, min, max float64) (*Channel, error) {
	c, err := parseHexColor(hexColor)
	if err != nil {
		return nil, err
	}
	return &Channel{
		Index: index,
		Color: c,
		Min:   float32(min),
		Max:   float32(max),
		Gamma: 1,
	}, nil
}

// ParseChannel parses one wire-format channel descriptor
// "<index>,<hexcolor>,<min>,<max>".
func ParseChannel(s string) (*Channel, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, wsi.Invalidf("incorrect rendering setting: %q", s)
	}
	index, err := strconv.Atoi(parts[0])
	if err != nil || index < 0 {
		return nil, wsi.Invalidf("channel index %q invalid", parts[0])
	}
	c, err := parseHexColor(parts[1])
	if err != nil {
		return nil, err
	}
	min, err := strconv.ParseFloat(parts[2], 32)
	if err != nil {
		return nil, wsi.Invalidf("channel min %q invalid", parts[2])
	}
	max, err := strconv.ParseFloat(parts[3], 32)
	if err != nil {
		return nil, wsi.Invalidf("channel max %q invalid", parts[3])
	}
	return &Channel{
		Index: index,
		Color: c,
		Min:   float32(min),
		Max:   float32(max),
		Gamma: 1,
	}, nil
}

// ParseChannels parses a "/"-delimited list of channel descriptors.
func ParseChannels(path string) ([]*Channel, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || (len(parts) == 1 && parts[0] == "") {
		return nil, wsi.Invalidf("no channels specified")
	}
	channels := make([]*Channel, len(parts))
	for i, part := range parts {
		ch, err := ParseChannel(part)
		if err != nil {
			return nil, err
		}
		channels[i] = ch
	}
	return channels, nil
}

// ParseOmeroChannels parses the compact OMERO/Pathviewer encoding
// "c=<id>|<min>:<max>$<hexcolor>,...".  Intensity bounds are 16-bit values
// normalized by 65535, external channel ids are 1-based, and a negative id
// means the channel is off and is filtered out.
func ParseOmeroChannels(c string) ([]*Channel, error) {
	var channels []*Channel
	for _, chstr := range strings.Split(c, ",") {
		idAndSettings := strings.SplitN(chstr, "|", 2)
		if len(idAndSettings) != 2 {
			return nil, wsi.Invalidf("incorrect omero channel setting: %q", chstr)
		}
		id, err := strconv.Atoi(idAndSettings[0])
		if err != nil {
			return nil, wsi.Invalidf("omero channel id %q invalid", idAndSettings[0])
		}
		if id < 0 {
			continue // channel is off
		}
		rangeAndColor := strings.SplitN(idAndSettings[1], "$", 2)
		if len(rangeAndColor) != 2 {
			return nil, wsi.Invalidf("incorrect omero channel setting: %q", chstr)
		}
		bounds := strings.SplitN(rangeAndColor[0], ":", 2)
		if len(bounds) != 2 {
			return nil, wsi.Invalidf("incorrect omero channel range: %q", rangeAndColor[0])
		}
		cmin, err := strconv.Atoi(bounds[0])
		if err != nil {
			return nil, wsi.Invalidf("omero channel min %q invalid", bounds[0])
		}
		cmax, err := strconv.Atoi(bounds[1])
		if err != nil {
			return nil, wsi.Invalidf("omero channel max %q invalid", bounds[1])
		}
		color, err := parseHexColor(rangeAndColor[1])
		if err != nil {
			return nil, err
		}
		channels = append(channels, &Channel{
			Index: id - 1, // omero channel indexing starts from 1
			Color: color,
			Min:   float32(cmin) / 65535,
			Max:   float32(cmax) / 65535,
			Gamma: 1,
		})
	}
	return channels, nil
}

// String renders the channel back to its 4-field wire descriptor.
func (c *Channel) String() string {
	return fmt.Sprintf("%d,%02x%02x%02x,%g,%g", c.Index,
		uint8(c.Color[0]*255+0.5), uint8(c.Color[1]*255+0.5), uint8(c.Color[2]*255+0.5),
		c.Min, c.Max)
}

// parseHexColor decodes exactly 6 hex digits into a unit-interval RGB vector.
// The ordering is RGB everywhere inside the engine; any BGR conversion is an
// encoder concern.
func parseHexColor(s string) ([3]float32, error) {
	if len(s) != 6 {
		return [3]float32{}, wsi.Invalidf("hex color value %q invalid", s)
	}
	c, err := colorful.Hex("#" + s)
	if err != nil {
		return [3]float32{}, wsi.Invalidf("hex color value %q invalid", s)
	}
	return [3]float32{float32(c.R), float32(c.G), float32(c.B)}, nil
}
