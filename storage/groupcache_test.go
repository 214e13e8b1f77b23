package storage

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

type fakeRenderer struct {
	calls int32
	fail  bool
}

func (f *fakeRenderer) RenderTileBytes(ctx context.Context, key string) ([]byte, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.fail {
		return nil, errors.New("render failed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []byte("png:" + key), nil
}

// The groupcache pool and groups are process-global, so one test owns the
// whole rendered-cache lifecycle.
func TestRenderedTileCache(t *testing.T) {
	if rc := NewRenderedTileCache(RenderedTileCacheConfig{GB: 0}, nil); rc != nil {
		t.Fatalf("zero-size config should disable the cache, got %v", rc)
	}

	renderer := &fakeRenderer{}
	rc := NewRenderedTileCache(RenderedTileCacheConfig{GB: 1, Host: "http://localhost:8000"}, renderer)
	if rc == nil {
		t.Fatal("expected a rendered tile cache")
	}

	ctx := context.Background()
	key := "img-uuid/T0-Z0-L0-Y0-X0/group-uuid"
	data, err := rc.Get(ctx, key)
	if err != nil {
		t.Fatalf("miss-path get: %v", err)
	}
	if !bytes.Equal(data, []byte("png:"+key)) {
		t.Errorf("got %q from renderer path", data)
	}
	if n := atomic.LoadInt32(&renderer.calls); n != 1 {
		t.Errorf("renderer called %d times, want 1", n)
	}

	// Second get is served from cache without re-rendering.
	data, err = rc.Get(ctx, key)
	if err != nil {
		t.Fatalf("hit-path get: %v", err)
	}
	if !bytes.Equal(data, []byte("png:"+key)) {
		t.Errorf("got %q from cache path", data)
	}
	if n := atomic.LoadInt32(&renderer.calls); n != 1 {
		t.Errorf("renderer called %d times after cached get, want 1", n)
	}

	// Renderer errors propagate to the caller on a fresh key.
	renderer.fail = true
	if _, err := rc.Get(ctx, "img-uuid/T0-Z0-L0-Y0-X1/group-uuid"); err == nil {
		t.Error("expected renderer error to propagate")
	}
}
