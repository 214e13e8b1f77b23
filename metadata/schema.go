package metadata

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/wsiserve/wsiserve/wsi"
)

// channelGroupSchema constrains channel-group POST bodies before they are
// persisted.  Saved groups are immutable and feed the rendered-tile cache
// key, so malformed bodies must be rejected up front.
const channelGroupSchema = `{
	"type": "object",
	"required": ["image_uuid", "channels"],
	"properties": {
		"uuid": {"type": "string"},
		"image_uuid": {"type": "string"},
		"label": {"type": "string"},
		"channels": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["id", "color", "min", "max"],
				"properties": {
					"id": {"type": "integer", "minimum": 0},
					"label": {"type": "string"},
					"color": {"type": "string", "pattern": "^[0-9a-fA-F]{6}$"},
					"min": {"type": "number", "minimum": 0, "maximum": 1},
					"max": {"type": "number", "minimum": 0, "maximum": 1}
				}
			}
		}
	}
}`

var compiledGroupSchema = jsonschema.MustCompileString("channel_group.json", channelGroupSchema)

// ValidateChannelGroup checks a channel-group JSON body against the schema
// and decodes it.  Schema violations come back as validation errors so the
// HTTP layer maps them to a client-error status.
func ValidateChannelGroup(body []byte) (*ChannelGroup, error) {
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, wsi.Invalidf("malformed channel group JSON: %v", err)
	}
	if err := compiledGroupSchema.Validate(v); err != nil {
		return nil, wsi.Invalidf("invalid channel group: %v", err)
	}
	cg := new(ChannelGroup)
	if err := json.Unmarshal(body, cg); err != nil {
		return nil, wsi.Invalidf("malformed channel group JSON: %v", err)
	}
	return cg, nil
}
