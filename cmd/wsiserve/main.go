// Command wsiserve runs the whole-slide image tile render server.

package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"gocloud.dev/blob"

	"github.com/wsiserve/wsiserve/metadata"
	"github.com/wsiserve/wsiserve/render"
	"github.com/wsiserve/wsiserve/server"
	"github.com/wsiserve/wsiserve/storage"
	"github.com/wsiserve/wsiserve/wsi"
)

var (
	showHelp   = flag.Bool("help", false, "")
	runVerbose = flag.Bool("verbose", false, "")
	configFile = flag.String("config", "", "")
)

const helpMessage = `
wsiserve is a multi-channel whole-slide image tile render server

Usage: wsiserve [options]

      -config     =string   Path to TOML configuration file (required).
      -verbose    (flag)    Run in verbose mode.
  -h, -help       (flag)    Show help message
`

func main() {
	flag.Usage = func() {
		fmt.Print(helpMessage)
	}
	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if *runVerbose {
		wsi.SetLogMode(wsi.DebugMode)
	}

	config, err := server.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to load configuration: %v\n", err)
		os.Exit(1)
	}
	config.Logging.SetLogger()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	wsi.Infof("Starting wsiserve on %d CPUs, %s heap in use\n",
		runtime.NumCPU(), humanize.Bytes(memStats.HeapAlloc))

	svc, err := setup(config)
	if err != nil {
		wsi.Criticalf("unable to initialize server: %v\n", err)
		os.Exit(1)
	}
	defer svc.Shutdown()

	if err := svc.Serve(); err != nil {
		wsi.Criticalf("server error: %v\n", err)
		os.Exit(1)
	}
}

// setup wires storage, metadata, caches, and the activity producer into a
// service per the loaded configuration.
func setup(config *server.Config) (*server.Service, error) {
	var tileCache *storage.TileCache
	if config.Cache.TileMB > 0 {
		tileCache = storage.NewTileCache(config.Cache.TileMB << 20)
		wsi.Infof("Raw tile cache: %s\n", humanize.Bytes(uint64(config.Cache.TileMB)<<20))
	}
	permCache := storage.NewPermissionCache(permCacheBytes(config), permTTL(config))

	var missing storage.MissingTileHandler
	if config.Store.BlankMissingTiles {
		missing = storage.BlankTileHandler{}
	}

	var tiles render.TileSource
	var bucketSource *storage.BucketTileSource
	switch {
	case config.Store.Bucket != "":
		var err error
		bucketSource, err = storage.NewBucketTileSource(config.Store.Bucket, config.Store.TileExtension, tileCache, missing)
		if err != nil {
			return nil, err
		}
		tiles = bucketSource
	case config.Store.Path != "":
		tiles = storage.NewFileTileSource(config.Store.Path, config.Store.TileExtension, tileCache, missing)
	default:
		return nil, fmt.Errorf("configuration needs a [store] bucket or path for tiles")
	}

	var meta metadata.Store
	var err error
	if config.Store.MetadataPath != "" {
		meta, err = metadata.OpenBadgerStore(config.Store.MetadataPath)
	} else {
		wsi.Infof("No metadata path configured; using in-memory metadata store.\n")
		meta, err = metadata.OpenInMemoryStore()
	}
	if err != nil {
		return nil, err
	}

	activity, err := storage.NewActivityProducer(config.Kafka, config.Server.Host)
	if err != nil {
		return nil, err
	}

	var bucket *blob.Bucket
	if bucketSource != nil {
		bucket = bucketSource.Bucket()
	}
	svc := server.NewService(config, tiles, meta, bucket, tileCache, permCache, activity)
	if rc := storage.NewRenderedTileCache(config.Groupcache, svc); rc != nil {
		svc.AttachRenderedCache(rc)
	}
	return svc, nil
}

func permCacheBytes(config *server.Config) int {
	if config.Cache.PermissionMB > 0 {
		return config.Cache.PermissionMB << 20
	}
	return 1 << 20
}

func permTTL(config *server.Config) time.Duration {
	return time.Duration(config.Cache.PermissionTTL) * time.Second
}
