package main

import (
	"encoding/json"
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/joho/godotenv"
)

var (
	dirFlag          = flag.String("dir", "", "database directory")
	httpFlag         = flag.String("http", ":3000", "stats server listen address")
	segmentSizeFlag  = flag.Int64("segment-size", 1<<30, "max bytes per segment file")
	blockCacheFlag   = flag.Uint("block-cache", 0, "shared block LRU size in bytes, 0 disables")
	syncWriteFlag    = flag.Bool("sync-write", false, "fsync after every committing append")
	bytesPerSyncFlag = flag.Uint("bytes-per-sync", 0, "fsync once this many unsynced bytes accumulate, 0 disables")
	configURLFlag    = flag.String("config-url", "", "optional URL serving a JSON options overlay")
)

// Config is the CLI's own configuration surface, parsed from flags and
// environment variables the way _examples/catalinm00-KVDB's
// internal/platform/config/config.go loads ServerPort/WalDirectory.
type Config struct {
	DirPath      string
	HTTPAddr     string
	SegmentSize  int64
	BlockCache   uint32
	SyncWrite    bool
	BytesPerSync uint32
	ConfigURL    string
}

// LoadConfig parses flags, loads a .env file via godotenv (as the teacher
// does), then lets BARRELKV_DIR, BARRELKV_HTTP, BARRELKV_SEGMENT_SIZE and
// BARRELKV_CONFIG_URL, when non-empty, override the matching fields whether
// or not the flag was set; the other fields come from flags only.
func LoadConfig() Config {
	if !flag.Parsed() {
		flag.Parse()
	}
	godotenv.Load(".env")

	cfg := Config{
		DirPath:      *dirFlag,
		HTTPAddr:     *httpFlag,
		SegmentSize:  *segmentSizeFlag,
		BlockCache:   uint32(*blockCacheFlag),
		SyncWrite:    *syncWriteFlag,
		BytesPerSync: uint32(*bytesPerSyncFlag),
		ConfigURL:    *configURLFlag,
	}
	if v := os.Getenv("BARRELKV_DIR"); v != "" {
		cfg.DirPath = v
	}
	if v := os.Getenv("BARRELKV_HTTP"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("BARRELKV_SEGMENT_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.SegmentSize = n
		}
	}
	if v := os.Getenv("BARRELKV_CONFIG_URL"); v != "" {
		cfg.ConfigURL = v
	}
	return cfg
}

// configOverlay is the shape of the JSON document fetched from
// Config.ConfigURL: a subset of Config an operator's config server may
// override without redeploying the binary.
type configOverlay struct {
	SegmentSize  *int64  `json:"segmentSize"`
	BlockCache   *uint32 `json:"blockCache"`
	SyncWrite    *bool   `json:"syncWrite"`
	BytesPerSync *uint32 `json:"bytesPerSync"`
}

// applyOverlay fetches a JSON options overlay from url via resty, mirroring
// _examples/catalinm00-KVDB/internal/platform/client/config-server-client.go's
// role, and merges any set fields into cfg.
func applyOverlay(cfg Config, url string) (Config, error) {
	if url == "" {
		return cfg, nil
	}
	client := resty.New().SetTimeout(5 * time.Second)
	resp, err := client.R().Get(url)
	if err != nil {
		return cfg, err
	}
	var overlay configOverlay
	if err := json.Unmarshal(resp.Body(), &overlay); err != nil {
		return cfg, err
	}
	if overlay.SegmentSize != nil {
		cfg.SegmentSize = *overlay.SegmentSize
	}
	if overlay.BlockCache != nil {
		cfg.BlockCache = *overlay.BlockCache
	}
	if overlay.SyncWrite != nil {
		cfg.SyncWrite = *overlay.SyncWrite
	}
	if overlay.BytesPerSync != nil {
		cfg.BytesPerSync = *overlay.BytesPerSync
	}
	return cfg, nil
}
