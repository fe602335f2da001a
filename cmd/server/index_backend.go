package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"brickforge.ai/internal/engine"
	"brickforge.ai/internal/export"
	"brickforge.ai/internal/lattice/catalogs"
	"brickforge.ai/internal/lattice/tuning"
	"brickforge.ai/internal/persistence/indexdb"
	"brickforge.ai/internal/persistence/objectstore"
)

// runtimeIndex is the read model behind export lookups.
type runtimeIndex interface {
	export.Recorder
	engine.ExportStore
	Close() error
}

type catalogUpserter interface {
	UpsertCatalogs(ctx context.Context, cats *catalogs.Catalogs, tune tuning.Tuning) error
}

func openRuntimeIndex(dataDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("BF_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "memory":
		return indexdb.NewMemory(), nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(dataDir, "index", "brickforge.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported BF_INDEX_BACKEND: %s", backend)
	}
}

// openIndexMirror forwards export and request summaries to a remote ingest
// endpoint when BF_INDEX_MIRROR_URL is set.
func openIndexMirror(logger *log.Logger) (*indexdb.Mirror, error) {
	endpoint := strings.TrimSpace(os.Getenv("BF_INDEX_MIRROR_URL"))
	if endpoint == "" {
		return nil, nil
	}
	return indexdb.OpenMirror(indexdb.MirrorConfig{
		Endpoint:      endpoint,
		Token:         strings.TrimSpace(os.Getenv("BF_INDEX_MIRROR_TOKEN")),
		Source:        strings.TrimSpace(os.Getenv("BF_INDEX_MIRROR_SOURCE")),
		BatchSize:     envInt("BF_INDEX_MIRROR_BATCH_SIZE", 128),
		FlushInterval: time.Duration(envInt("BF_INDEX_MIRROR_FLUSH_MS", 500)) * time.Millisecond,
		Logger:        logger,
	})
}

func openArtifactUploader(root string, logger *log.Logger) (*objectstore.Uploader, error) {
	if !envBool("BF_ARTIFACT_UPLOAD", false) {
		return nil, nil
	}
	endpoint := strings.TrimSpace(os.Getenv("BF_S3_ENDPOINT"))
	bucket := strings.TrimSpace(os.Getenv("BF_S3_BUCKET"))
	keyID := strings.TrimSpace(os.Getenv("BF_S3_ACCESS_KEY_ID"))
	secret := strings.TrimSpace(os.Getenv("BF_S3_SECRET_ACCESS_KEY"))
	if endpoint == "" || bucket == "" || keyID == "" || secret == "" {
		return nil, fmt.Errorf("BF_ARTIFACT_UPLOAD=true but BF_S3_ENDPOINT/BF_S3_BUCKET/BF_S3_ACCESS_KEY_ID/BF_S3_SECRET_ACCESS_KEY are not fully set")
	}
	client, err := objectstore.New(objectstore.Config{
		Endpoint:        endpoint,
		Bucket:          bucket,
		Region:          strings.TrimSpace(os.Getenv("BF_S3_REGION")),
		AccessKeyID:     keyID,
		SecretAccessKey: secret,
	})
	if err != nil {
		return nil, err
	}
	return objectstore.NewUploader(client, objectstore.UploaderConfig{
		Root:    root,
		Prefix:  strings.TrimSpace(os.Getenv("BF_S3_PREFIX")),
		Workers: envInt("BF_ARTIFACT_UPLOAD_WORKERS", 2),
		Logger:  logger,
	}), nil
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
