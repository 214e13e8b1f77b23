package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/blob/gcsblob"
	"gocloud.dev/gcerrors"
	"gocloud.dev/gcp"

	// Register URL-openable drivers for s3:// and file:// references.
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/wsiserve/wsiserve/render"
	"github.com/wsiserve/wsiserve/wsi"
)

// OpenBucket returns a blob.Bucket for the given reference.
// The reference should be of the form:
//
//	gs://<bucketname>
//	s3://<bucketname>[/<prefix>]
//	file:///<dir>
func OpenBucket(ref string) (bucket *blob.Bucket, err error) {
	ctx := context.Background()

	switch {
	case strings.HasPrefix(ref, "s3://"):
		// Requires AWS credentials discoverable by gocloud and AWS_REGION set.
		bucket, err = blob.OpenBucket(ctx, ref)
		if err != nil {
			wsi.Errorf("Can't open bucket reference @ %q: %v\n", ref, err)
			return nil, err
		}
		pathpart := strings.TrimPrefix(ref, "s3://")
		parts := strings.SplitN(pathpart, "/", 2)
		if len(parts) == 2 && parts[1] != "" {
			bucket = blob.PrefixedBucket(bucket, parts[1])
		}

	case strings.HasPrefix(ref, "file://"):
		bucket, err = blob.OpenBucket(ctx, ref)
		if err != nil {
			wsi.Errorf("Can't open bucket reference @ %q: %v\n", ref, err)
			return nil, err
		}

	case strings.HasPrefix(ref, "gs://"):
		// See https://cloud.google.com/docs/authentication/production
		// for more info on alternatives.
		creds, err := gcp.DefaultCredentials(ctx)
		if err != nil {
			return nil, err
		}
		client, err := gcp.NewHTTPClient(
			gcp.DefaultTransport(),
			gcp.CredentialsTokenSource(creds))
		if err != nil {
			return nil, err
		}
		bucketname := strings.TrimPrefix(ref, "gs://")
		bucket, err = gcsblob.OpenBucket(ctx, client, bucketname, nil)
		if err != nil {
			wsi.Errorf("Can't open bucket reference @ %q: %v\n", ref, err)
			return nil, err
		}
		return bucket, nil

	default:
		return nil, fmt.Errorf("bucket ref must start with s3://, gs://, or file://, got %q", ref)
	}
	return bucket, nil
}

// BucketTileSource reads raw channel tiles from a blob bucket.  Reads go
// through the byte cache when one is attached; missing objects are resolved
// by the configured MissingTileHandler.
type BucketTileSource struct {
	bucket  *blob.Bucket
	ext     string
	cache   *TileCache
	missing MissingTileHandler
}

// NewBucketTileSource opens the given bucket reference and returns a tile
// source over it.  An empty ext defaults to DefaultTileExtension; a nil
// handler defaults to BoundsErrorHandler.
func NewBucketTileSource(ref, ext string, cache *TileCache, missing MissingTileHandler) (*BucketTileSource, error) {
	bucket, err := OpenBucket(ref)
	if err != nil {
		return nil, err
	}
	if ext == "" {
		ext = DefaultTileExtension
	}
	if missing == nil {
		missing = BoundsErrorHandler{}
	}
	return &BucketTileSource{
		bucket:  bucket,
		ext:     ext,
		cache:   cache,
		missing: missing,
	}, nil
}

// GetTile implements render.TileSource.
func (s *BucketTileSource) GetTile(ctx context.Context, addr wsi.TileAddress) (*render.Image, error) {
	key := addr.StorageKey(s.ext)
	if s.cache != nil {
		if data, found := s.cache.Get(key); found {
			return DecodeTile(data, s.ext)
		}
	}

	timedLog := wsi.NewTimeLog()
	r, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return s.missing.HandleMissingTile(addr)
		}
		return nil, wsi.StorageError{Op: "read", Key: key, Err: err}
	}
	defer r.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, wsi.StorageError{Op: "read", Key: key, Err: err}
	}
	data := buf.Bytes()
	timedLog.Debugf("bucket read of tile %q (%d bytes)", key, len(data))

	if s.cache != nil {
		s.cache.Put(key, data)
	}
	return DecodeTile(data, s.ext)
}

// Bucket exposes the underlying blob bucket for callers that read other
// fileset objects, like the OME-XML metadata document.
func (s *BucketTileSource) Bucket() *blob.Bucket {
	return s.bucket
}

// Close releases the underlying bucket.
func (s *BucketTileSource) Close() error {
	return s.bucket.Close()
}
