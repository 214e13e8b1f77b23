package metadata

import (
	"context"
	"encoding/xml"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/wsiserve/wsiserve/wsi"
)

// MetadataObjectName is the per-fileset OME-XML document written by the
// ingestion pipeline next to the fileset's tiles.
const MetadataObjectName = "metadata.xml"

// omePixels mirrors the Pixels element attributes we read.  The document
// carries far more; everything else is the ingestion pipeline's concern.
type omePixels struct {
	SizeX int    `xml:"SizeX,attr"`
	SizeY int    `xml:"SizeY,attr"`
	SizeZ int    `xml:"SizeZ,attr"`
	SizeC int    `xml:"SizeC,attr"`
	SizeT int    `xml:"SizeT,attr"`
	Type  string `xml:"Type,attr"`
}

type omeImage struct {
	ID     string    `xml:"ID,attr"`
	Name   string    `xml:"Name,attr"`
	Pixels omePixels `xml:"Pixels"`
}

type omeDocument struct {
	XMLName xml.Name   `xml:"OME"`
	Images  []omeImage `xml:"Image"`
}

// ImageGeometry is the pixel geometry of one image as declared in the
// fileset's OME-XML document.
type ImageGeometry struct {
	ID       string
	Name     string
	Width    int
	Height   int
	SizeZ    int
	SizeC    int
	SizeT    int
	BitDepth uint8
}

// ParseOMEXML decodes an OME-XML document into per-image geometry, in
// document order.
func ParseOMEXML(data []byte) ([]ImageGeometry, error) {
	var doc omeDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, wsi.Invalidf("malformed OME-XML metadata: %v", err)
	}
	geoms := make([]ImageGeometry, 0, len(doc.Images))
	for _, im := range doc.Images {
		geoms = append(geoms, ImageGeometry{
			ID:       im.ID,
			Name:     im.Name,
			Width:    im.Pixels.SizeX,
			Height:   im.Pixels.SizeY,
			SizeZ:    im.Pixels.SizeZ,
			SizeC:    im.Pixels.SizeC,
			SizeT:    im.Pixels.SizeT,
			BitDepth: bitDepthForType(im.Pixels.Type),
		})
	}
	return geoms, nil
}

// UUID returns the image's UUID from its OME ID attribute, which the
// ingestion pipeline writes as "Image:{uuid}".  Tiles are keyed under that
// UUID, so image records must carry it unchanged.
func (g ImageGeometry) UUID() string {
	return strings.TrimPrefix(g.ID, "Image:")
}

func bitDepthForType(pixelType string) uint8 {
	switch strings.ToLower(pixelType) {
	case "uint8", "int8":
		return 8
	default:
		return 16
	}
}

// FetchImageGeometry reads `{fileset_uuid}/metadata.xml` from the bucket.
// A missing document means ingestion has not finished extracting metadata,
// reported as a NotReadyError so clients retry later.
func FetchImageGeometry(ctx context.Context, bucket *blob.Bucket, filesetUUID string) ([]ImageGeometry, error) {
	key := filesetUUID + "/" + MetadataObjectName
	data, err := bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, wsi.NotReadyError{FilesetUUID: filesetUUID}
		}
		return nil, wsi.StorageError{Op: "read", Key: key, Err: err}
	}
	return ParseOMEXML(data)
}
