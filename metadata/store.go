/*
Package metadata holds the read-mostly records the render path consults:
image geometry, fileset ingestion state, saved channel groups, and
permission grants.  The store is a small embedded key-value database; the
render path treats it as an external dependency queried once per request
(with caching in front for permissions).
*/
package metadata

import (
	"errors"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("metadata record not found")

// Image describes one image of a fileset: its full-resolution pixel
// geometry and the number of pyramid levels the ingestion pipeline built.
type Image struct {
	UUID          string `json:"uuid"`
	FilesetUUID   string `json:"fileset_uuid"`
	PyramidLevels int    `json:"pyramid_levels"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	SizeZ         int    `json:"size_z"`
	SizeC         int    `json:"size_c"`
	SizeT         int    `json:"size_t"`
	BitDepth      uint8  `json:"bit_depth"`
}

// Fileset tracks whether ingestion has completed for a group of images.
// Requests against an incomplete fileset get a retry-later response.
type Fileset struct {
	UUID     string `json:"uuid"`
	Complete bool   `json:"complete"`
}

// ChannelRecord is one channel's saved display parameters within a group.
// Color is six hex digits; Min and Max are unit-interval intensity bounds.
type ChannelRecord struct {
	ID    int     `json:"id"`
	Label string  `json:"label"`
	Color string  `json:"color"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// ChannelGroup is a named, persisted set of channel display parameters
// reusable across tile requests.  Groups are immutable once saved, which
// lets rendered tiles be cached by group UUID without invalidation.
type ChannelGroup struct {
	UUID      string          `json:"uuid"`
	ImageUUID string          `json:"image_uuid"`
	Label     string          `json:"label"`
	Channels  []ChannelRecord `json:"channels"`
}

// Store is the metadata persistence contract.
type Store interface {
	GetImage(uuid string) (*Image, error)
	PutImage(img *Image) error

	GetFileset(uuid string) (*Fileset, error)
	PutFileset(fs *Fileset) error

	GetChannelGroup(uuid string) (*ChannelGroup, error)
	PutChannelGroup(cg *ChannelGroup) error
	ListChannelGroups(imageUUID string) ([]*ChannelGroup, error)

	// HasPermission reports whether the subject may read the image.
	HasPermission(subject, imageUUID string) (bool, error)
	GrantPermission(subject, imageUUID string) error

	Close() error
}
