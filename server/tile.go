package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/zenazn/goji/web"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/wsiserve/wsiserve/metadata"
	"github.com/wsiserve/wsiserve/render"
	"github.com/wsiserve/wsiserve/wsi"
)

// pathInt parses a required integer path parameter.
func pathInt(c web.C, name string) (int, error) {
	s, found := c.URLParams[name]
	if !found || s == "" {
		return 0, wsi.MissingParameterError{Name: name}
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, wsi.Invalidf("parameter %q must be an integer, got %q", name, s)
	}
	return v, nil
}

// queryGamma parses the optional gamma query parameter.  Zero means "use the
// channel defaults".
func queryGamma(r *http.Request) (float32, error) {
	s := r.URL.Query().Get("gamma")
	if s == "" {
		return 0, nil
	}
	g, err := strconv.ParseFloat(s, 32)
	if err != nil || g <= 0 {
		return 0, wsi.Invalidf("gamma must be a positive number, got %q", s)
	}
	return float32(g), nil
}

// imageRecord resolves the image by UUID and confirms its fileset finished
// ingestion.
func (s *Service) imageRecord(uuid string) (*metadata.Image, error) {
	if err := wsi.ValidateUUID(uuid); err != nil {
		return nil, err
	}
	img, err := s.meta.GetImage(uuid)
	if err == metadata.ErrNotFound {
		return nil, wsi.TileBoundsf("image %s not found", uuid)
	}
	if err != nil {
		return nil, err
	}
	fs, err := s.meta.GetFileset(img.FilesetUUID)
	if err != nil && err != metadata.ErrNotFound {
		return nil, err
	}
	if fs == nil || !fs.Complete {
		return nil, wsi.NotReadyError{FilesetUUID: img.FilesetUUID}
	}
	return img, nil
}

// validateTileBounds rejects tile coordinates outside the image's declared
// pyramid extent before any storage fetch, naming the offending field.
func validateTileBounds(img *metadata.Image, x, y, z, t, level int) error {
	if level < 0 || level >= img.PyramidLevels {
		return wsi.OutOfRange("level", level, 0, img.PyramidLevels-1)
	}
	levelW, levelH := render.LevelDims(img.Width, img.Height, level)
	maxX := (levelW + wsi.DefaultTileSize - 1) / wsi.DefaultTileSize
	maxY := (levelH + wsi.DefaultTileSize - 1) / wsi.DefaultTileSize
	if x < 0 || x >= maxX {
		return wsi.OutOfRange("x", x, 0, maxX-1)
	}
	if y < 0 || y >= maxY {
		return wsi.OutOfRange("y", y, 0, maxY-1)
	}
	if z < 0 || z >= img.SizeZ {
		return wsi.OutOfRange("z", z, 0, img.SizeZ-1)
	}
	if t < 0 || t >= img.SizeT {
		return wsi.OutOfRange("t", t, 0, img.SizeT-1)
	}
	return nil
}

// validateChannelBounds rejects channel indices outside the image's declared
// channel count before any fetch is spawned.  Without this an out-of-range
// channel would be indistinguishable from a sparse hole and could be served
// as a blank tile.
func validateChannelBounds(img *metadata.Image, channels []*render.Channel) error {
	for _, ch := range channels {
		if ch.Index < 0 || ch.Index >= img.SizeC {
			return wsi.OutOfRange("channel", ch.Index, 0, img.SizeC-1)
		}
	}
	return nil
}

// fetchChannelTiles fetches one tile per channel in parallel, bounded by the
// assembler's fetch ceiling, attaching each result to its channel.
func (s *Service) fetchChannelTiles(ctx context.Context, imageID string, x, y, z, t, level int, channels []*render.Channel) error {
	sem := semaphore.NewWeighted(int64(s.assembler.Concurrency))
	eg, egCtx := errgroup.WithContext(ctx)
	for _, ch := range channels {
		ch := ch
		eg.Go(func() error {
			if err := sem.Acquire(egCtx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			im, err := s.tiles.GetTile(egCtx, wsi.TileAddress{
				ImageID: imageID,
				X:       x, Y: y, Z: z, T: t,
				Channel: ch.Index,
				Level:   level,
			})
			if err != nil {
				return err
			}
			ch.Image = im
			return nil
		})
	}
	return eg.Wait()
}

// tileParams bundles the common path coordinates of tile endpoints.
type tileParams struct {
	uuid          string
	x, y, z, t    int
	level         int
}

func parseTileParams(c web.C) (tileParams, error) {
	var p tileParams
	var err error
	p.uuid = c.URLParams["uuid"]
	if p.uuid == "" {
		return p, wsi.MissingParameterError{Name: "uuid"}
	}
	if p.x, err = pathInt(c, "x"); err != nil {
		return p, err
	}
	if p.y, err = pathInt(c, "y"); err != nil {
		return p, err
	}
	if p.z, err = pathInt(c, "z"); err != nil {
		return p, err
	}
	if p.t, err = pathInt(c, "t"); err != nil {
		return p, err
	}
	p.level, err = pathInt(c, "level")
	return p, err
}

// renderTileHandler serves
// GET /image/:uuid/render_tile/:x/:y/:z/:t/:level/<channels>
// where <channels> is a "/"-delimited list of "index,hexcolor,min,max"
// descriptors.  An optional gamma query overrides the per-channel default.
func (s *Service) renderTileHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	// Warmup requests exist to prime process state; skip all work.
	if r.URL.Query().Get("warmup") != "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	timedLog := wsi.NewTimeLog()

	p, err := parseTileParams(c)
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}
	channels, err := render.ParseChannels(c.URLParams["*"])
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}
	gamma, err := queryGamma(r)
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}

	user := requestUser(c)
	if err := s.checkPermission(user, p.uuid); err != nil {
		ErrorJSON(w, r, err)
		return
	}
	img, err := s.imageRecord(p.uuid)
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}
	if err := validateTileBounds(img, p.x, p.y, p.z, p.t, p.level); err != nil {
		ErrorJSON(w, r, err)
		return
	}
	if err := validateChannelBounds(img, channels); err != nil {
		ErrorJSON(w, r, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	if err := s.fetchChannelTiles(ctx, p.uuid, p.x, p.y, p.z, p.t, p.level, channels); err != nil {
		ErrorJSON(w, r, err)
		return
	}
	raster, err := render.CompositeChannels(channels, gamma)
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}
	if err := wsi.WriteImageHTTP(w, r, raster.RGBA()); err != nil {
		wsi.Errorf("unable to write rendered tile %s: %v\n", p.uuid, err)
		return
	}
	timedLog.Infof("HTTP GET render_tile %s L%d (%d,%d) %d channels", p.uuid, p.level, p.x, p.y, len(channels))
	s.logActivity(r, user, p.uuid, "render_tile", timedLog)
}

// rawTileHandler serves one channel's unblended samples as PNG, preserving
// bit depth.
func (s *Service) rawTileHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	timedLog := wsi.NewTimeLog()

	p, err := parseTileParams(c)
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}
	channel, err := pathInt(c, "channel")
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}
	user := requestUser(c)
	if err := s.checkPermission(user, p.uuid); err != nil {
		ErrorJSON(w, r, err)
		return
	}
	img, err := s.imageRecord(p.uuid)
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}
	if err := validateTileBounds(img, p.x, p.y, p.z, p.t, p.level); err != nil {
		ErrorJSON(w, r, err)
		return
	}
	if channel < 0 || channel >= img.SizeC {
		ErrorJSON(w, r, wsi.OutOfRange("channel", channel, 0, img.SizeC-1))
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	im, err := s.tiles.GetTile(ctx, wsi.TileAddress{
		ImageID: p.uuid,
		X:       p.x, Y: p.y, Z: p.z, T: p.t,
		Channel: channel,
		Level:   p.level,
	})
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}
	data, contentType, err := wsi.EncodeImage(im.GoImage(), "png", 0)
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
	timedLog.Infof("HTTP GET raw_tile %s L%d (%d,%d) c%d", p.uuid, p.level, p.x, p.y, channel)
}

// omeroRenderTileHandler serves the compact OMERO-style rendering request:
// GET /image/:uuid/omero_render_tile/:z/:t/:level/:x/:y?c=1|100:60000$FF0000,...
func (s *Service) omeroRenderTileHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	timedLog := wsi.NewTimeLog()

	uuid := c.URLParams["uuid"]
	z, err := pathInt(c, "z")
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}
	t, err := pathInt(c, "t")
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}
	level, err := pathInt(c, "level")
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}
	x, err := pathInt(c, "x")
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}
	y, err := pathInt(c, "y")
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}
	channels, err := render.ParseOmeroChannels(r.URL.Query().Get("c"))
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}
	if len(channels) == 0 {
		ErrorJSON(w, r, wsi.Invalidf("no channels enabled in %q", r.URL.Query().Get("c")))
		return
	}
	user := requestUser(c)
	if err := s.checkPermission(user, uuid); err != nil {
		ErrorJSON(w, r, err)
		return
	}
	img, err := s.imageRecord(uuid)
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}
	if err := validateTileBounds(img, x, y, z, t, level); err != nil {
		ErrorJSON(w, r, err)
		return
	}
	if err := validateChannelBounds(img, channels); err != nil {
		ErrorJSON(w, r, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	if err := s.fetchChannelTiles(ctx, uuid, x, y, z, t, level, channels); err != nil {
		ErrorJSON(w, r, err)
		return
	}
	raster, err := render.CompositeChannels(channels, 0)
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}
	if err := wsi.WriteImageHTTP(w, r, raster.RGBA()); err != nil {
		wsi.Errorf("unable to write omero tile %s: %v\n", uuid, err)
		return
	}
	timedLog.Infof("HTTP GET omero_render_tile %s L%d (%d,%d)", uuid, level, x, y)
	s.logActivity(r, user, uuid, "omero_render_tile", timedLog)
}

// logActivity publishes a request record to the activity topic, if any.
func (s *Service) logActivity(r *http.Request, user, imageUUID, op string, timedLog wsi.TimeLog) {
	s.activity.LogActivity(map[string]interface{}{
		"op":          op,
		"user":        user,
		"image":       imageUUID,
		"path":        r.URL.Path,
		"duration_ms": timedLog.Elapsed().Milliseconds(),
	})
}
