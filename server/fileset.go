package server

import (
	"net/http"

	"github.com/zenazn/goji/web"

	"github.com/wsiserve/wsiserve/metadata"
	"github.com/wsiserve/wsiserve/render"
	"github.com/wsiserve/wsiserve/wsi"
)

// syncFilesetHandler serves POST /fileset/:uuid/sync.  It reads the
// fileset's OME-XML metadata document from the tile store, creates an image
// record per declared image, and marks the fileset complete.  The ingestion
// pipeline calls this after it finishes writing tiles and metadata.xml.
func (s *Service) syncFilesetHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	timedLog := wsi.NewTimeLog()

	uuid := c.URLParams["uuid"]
	if err := wsi.ValidateUUID(uuid); err != nil {
		ErrorJSON(w, r, err)
		return
	}
	if s.bucket == nil {
		ErrorJSON(w, r, wsi.Invalidf("fileset sync requires a bucket tile store"))
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	geoms, err := metadata.FetchImageGeometry(ctx, s.bucket, uuid)
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}

	images := make([]*metadata.Image, 0, len(geoms))
	for _, g := range geoms {
		// The ingestion pipeline keys tiles under the OME image UUID, so
		// the record must reuse it.  Mint one only when the document
		// carries no usable ID.
		imageUUID := g.UUID()
		if wsi.ValidateUUID(imageUUID) != nil {
			imageUUID = wsi.NewUUID()
		}
		img := &metadata.Image{
			UUID:          imageUUID,
			FilesetUUID:   uuid,
			PyramidLevels: render.LevelCount(g.Width, g.Height, wsi.DefaultTileSize),
			Width:         g.Width,
			Height:        g.Height,
			SizeZ:         g.SizeZ,
			SizeC:         g.SizeC,
			SizeT:         g.SizeT,
			BitDepth:      g.BitDepth,
		}
		if err := s.meta.PutImage(img); err != nil {
			ErrorJSON(w, r, err)
			return
		}
		images = append(images, img)
	}
	if err := s.meta.PutFileset(&metadata.Fileset{UUID: uuid, Complete: true}); err != nil {
		ErrorJSON(w, r, err)
		return
	}

	writeJSON(w, map[string]interface{}{"fileset": uuid, "images": images})
	timedLog.Infof("HTTP POST fileset sync %s: %d images", uuid, len(images))
}
