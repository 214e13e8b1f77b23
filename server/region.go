package server

import (
	"net/http"
	"strconv"

	"github.com/zenazn/goji/web"

	"github.com/wsiserve/wsiserve/render"
	"github.com/wsiserve/wsiserve/wsi"
)

// queryInt parses an optional non-negative integer query parameter; absent
// returns 0.
func queryInt(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, wsi.Invalidf("query parameter %q must be a non-negative integer, got %q", name, s)
	}
	return v, nil
}

// renderRegionHandler serves
// GET /image/:uuid/render_region/:x/:y/:width/:height/:z/:t/<channels>
// with optional query parameters output-width, output-height, and
// prefer-higher-resolution.  Coordinates are full-resolution pixels; the
// pyramid level is chosen from the output size.
func (s *Service) renderRegionHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	timedLog := wsi.NewTimeLog()

	uuid := c.URLParams["uuid"]
	if uuid == "" {
		ErrorJSON(w, r, wsi.MissingParameterError{Name: "uuid"})
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
	width, err := pathInt(c, "width")
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}
	height, err := pathInt(c, "height")
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}
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
	channels, err := render.ParseChannels(c.URLParams["*"])
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}
	outputWidth, err := queryInt(r, "output-width")
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}
	outputHeight, err := queryInt(r, "output-height")
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}
	preferHigher := r.URL.Query().Get("prefer-higher-resolution") == "true"

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
	if err := validateChannelBounds(img, channels); err != nil {
		ErrorJSON(w, r, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	out, err := s.assembler.RenderRegion(ctx, render.RegionRequest{
		ImageID:                uuid,
		X:                      x,
		Y:                      y,
		Width:                  width,
		Height:                 height,
		Z:                      z,
		T:                      t,
		Channels:               channels,
		OutputWidth:            outputWidth,
		OutputHeight:           outputHeight,
		PreferHigherResolution: preferHigher,
		FullWidth:              img.Width,
		FullHeight:             img.Height,
		LevelCount:             img.PyramidLevels,
	})
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}
	if err := wsi.WriteImageHTTP(w, r, out); err != nil {
		wsi.Errorf("unable to write rendered region %s: %v\n", uuid, err)
		return
	}
	timedLog.Infof("HTTP GET render_region %s %dx%d+%d+%d %d channels", uuid, width, height, x, y, len(channels))
	s.logActivity(r, user, uuid, "render_region", timedLog)
}
