package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/zenazn/goji/web"

	"github.com/wsiserve/wsiserve/metadata"
	"github.com/wsiserve/wsiserve/render"
	"github.com/wsiserve/wsiserve/wsi"
)

// groupChannels converts persisted channel records into render channels.
func groupChannels(cg *metadata.ChannelGroup) ([]*render.Channel, error) {
	channels := make([]*render.Channel, 0, len(cg.Channels))
	for _, rec := range cg.Channels {
		ch, err := render.NewChannel(rec.ID, rec.Color, rec.Min, rec.Max)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

// renderGroupTile renders one tile with a saved channel group and encodes it
// as PNG.  The encoding is fixed so cached bytes are deterministic per key.
func (s *Service) renderGroupTile(ctx context.Context, img *metadata.Image, x, y, z, t, level int, cg *metadata.ChannelGroup) ([]byte, error) {
	channels, err := groupChannels(cg)
	if err != nil {
		return nil, err
	}
	if err := validateChannelBounds(img, channels); err != nil {
		return nil, err
	}
	if err := s.fetchChannelTiles(ctx, img.UUID, x, y, z, t, level, channels); err != nil {
		return nil, err
	}
	raster, err := render.CompositeChannels(channels, 0)
	if err != nil {
		return nil, err
	}
	data, _, err := wsi.EncodeImage(raster.RGBA(), "png", 0)
	return data, err
}

// RenderTileBytes renders the tile identified by a rendered-tile cache key,
// "{image_id}/T{t}-Z{z}-L{level}-Y{y}-X{x}/{channel_group_id}".  It is the
// miss path of the prerendered tile cache.
func (s *Service) RenderTileBytes(ctx context.Context, key string) ([]byte, error) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 {
		return nil, wsi.Invalidf("malformed rendered tile key %q", key)
	}
	imageID, coords, groupID := parts[0], parts[1], parts[2]
	var t, z, level, y, x int
	if _, err := fmt.Sscanf(coords, "T%d-Z%d-L%d-Y%d-X%d", &t, &z, &level, &y, &x); err != nil {
		return nil, wsi.Invalidf("malformed rendered tile key %q: %v", key, err)
	}
	cg, err := s.meta.GetChannelGroup(groupID)
	if err == metadata.ErrNotFound {
		return nil, wsi.Invalidf("channel group %s not found", groupID)
	}
	if err != nil {
		return nil, err
	}
	img, err := s.imageRecord(imageID)
	if err != nil {
		return nil, err
	}
	return s.renderGroupTile(ctx, img, x, y, z, t, level, cg)
}

// prerenderedTileHandler serves
// GET /image/:uuid/prerendered_tile/:x/:y/:z/:t/:level/:group
// rendering with the saved channel group, through the rendered tile cache
// when one is configured.
func (s *Service) prerenderedTileHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	timedLog := wsi.NewTimeLog()

	p, err := parseTileParams(c)
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}
	groupID := c.URLParams["group"]
	if groupID == "" {
		ErrorJSON(w, r, wsi.MissingParameterError{Name: "group"})
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

	ctx, cancel := s.requestContext(r)
	defer cancel()
	key := wsi.RenderedTileKey(p.uuid, p.x, p.y, p.z, p.t, p.level, groupID)
	var data []byte
	if s.rendered != nil {
		data, err = s.rendered.Get(ctx, key)
	} else {
		data, err = s.RenderTileBytes(ctx, key)
	}
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(data)
	timedLog.Infof("HTTP GET prerendered_tile %s L%d (%d,%d) group %s", p.uuid, p.level, p.x, p.y, groupID)
	s.logActivity(r, user, p.uuid, "prerendered_tile", timedLog)
}

// listChannelGroupsHandler serves GET /image/:uuid/channel_group.
func (s *Service) listChannelGroupsHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	uuid := c.URLParams["uuid"]
	user := requestUser(c)
	if err := s.checkPermission(user, uuid); err != nil {
		ErrorJSON(w, r, err)
		return
	}
	if err := wsi.ValidateUUID(uuid); err != nil {
		ErrorJSON(w, r, err)
		return
	}
	groups, err := s.meta.ListChannelGroups(uuid)
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}
	if groups == nil {
		groups = []*metadata.ChannelGroup{}
	}
	writeJSON(w, map[string]interface{}{"channel_groups": groups})
}

// createChannelGroupHandler serves POST /image/:uuid/channel_group with a
// JSON body validated against the channel-group schema.  Saved groups are
// immutable; posting an existing UUID is rejected.
func (s *Service) createChannelGroupHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	uuid := c.URLParams["uuid"]
	user := requestUser(c)
	if err := s.checkPermission(user, uuid); err != nil {
		ErrorJSON(w, r, err)
		return
	}
	if err := wsi.ValidateUUID(uuid); err != nil {
		ErrorJSON(w, r, err)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		ErrorJSON(w, r, wsi.Invalidf("unable to read request body: %v", err))
		return
	}
	cg, err := metadata.ValidateChannelGroup(body)
	if err != nil {
		ErrorJSON(w, r, err)
		return
	}
	if cg.ImageUUID != uuid {
		ErrorJSON(w, r, wsi.Invalidf("channel group image_uuid %q does not match path image %q", cg.ImageUUID, uuid))
		return
	}
	if cg.UUID == "" {
		cg.UUID = wsi.NewUUID()
	} else if _, err := s.meta.GetChannelGroup(cg.UUID); err == nil {
		ErrorJSON(w, r, wsi.Invalidf("channel group %s already exists", cg.UUID))
		return
	}
	if err := s.meta.PutChannelGroup(cg); err != nil {
		ErrorJSON(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(cg); err != nil {
		wsi.Errorf("unable to encode channel group response: %v\n", err)
	}
}
