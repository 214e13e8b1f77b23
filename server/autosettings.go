package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/zenazn/goji/web"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/wsiserve/wsiserve/render"
	"github.com/wsiserve/wsiserve/wsi"
)

// autoSetting is one channel's estimated display bounds, in raw intensity
// units of the channel's native bit depth.
type autoSetting struct {
	ID  int     `json:"id"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// autoSettingsHandler serves
// GET /image/:uuid/autosettings/:channel?method=histogram|gaussian
// estimating display min/max from a representative tile.  The channel path
// parameter may be a comma-separated list.  By default the top pyramid level
// is sampled; x, y, and level query parameters override that.
func (s *Service) autoSettingsHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	timedLog := wsi.NewTimeLog()

	uuid := c.URLParams["uuid"]
	if uuid == "" {
		ErrorJSON(w, r, wsi.MissingParameterError{Name: "uuid"})
		return
	}
	channelList := c.URLParams["channel"]
	if channelList == "" {
		ErrorJSON(w, r, wsi.MissingParameterError{Name: "channel"})
		return
	}
	method := r.URL.Query().Get("method")
	switch method {
	case "", "histogram", "gaussian":
	default:
		ErrorJSON(w, r, wsi.Invalidf("unknown autosettings method %q", method))
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

	// Default sample location: the single top-level tile.
	level := img.PyramidLevels - 1
	if ls := r.URL.Query().Get("level"); ls != "" {
		if level, err = queryInt(r, "level"); err != nil {
			ErrorJSON(w, r, err)
			return
		}
	}
	x, err := queryInt(r, "x")
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}
	y, err := queryInt(r, "y")
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}
	if err := validateTileBounds(img, x, y, 0, 0, level); err != nil {
		ErrorJSON(w, r, err)
		return
	}

	var channels []int
	for _, part := range strings.Split(channelList, ",") {
		ch, err := parseChannelIndex(part, img.SizeC)
		if err != nil {
			ErrorJSON(w, r, err)
			return
		}
		channels = append(channels, ch)
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	// One estimation task per channel, bounded like the tile fetch pool.
	settings := make([]autoSetting, len(channels))
	sem := semaphore.NewWeighted(int64(s.assembler.Concurrency))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, ch := range channels {
		i, ch := i, ch
		eg.Go(func() error {
			if err := sem.Acquire(egCtx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			im, err := s.tiles.GetTile(egCtx, wsi.TileAddress{
				ImageID: uuid,
				X:       x, Y: y, Z: 0, T: 0,
				Channel: ch,
				Level:   level,
			})
			if err != nil {
				return err
			}
			var min, max float64
			if method == "gaussian" {
				min, max, err = render.AutoGaussian(im, render.DefaultGMMComponents,
					render.DefaultGMMSubsampling, render.DefaultGMMSigmas)
				if err != nil {
					return err
				}
			} else {
				min, max = render.AutoHistogram(im, render.DefaultSaturationFraction)
			}
			settings[i] = autoSetting{ID: ch, Min: min, Max: max}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		ErrorJSON(w, r, err)
		return
	}

	writeJSON(w, map[string]interface{}{"channels": settings})
	timedLog.Infof("HTTP GET autosettings %s channels %s method %s", uuid, channelList, method)
}

func parseChannelIndex(s string, sizeC int) (int, error) {
	ch, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, wsi.Invalidf("channel index must be an integer, got %q", s)
	}
	if ch < 0 || (sizeC > 0 && ch >= sizeC) {
		return 0, wsi.OutOfRange("channel", ch, 0, sizeC-1)
	}
	return ch, nil
}
