package objectstore

import (
	"context"
	"fmt"
	"log"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type UploaderConfig struct {
	// Root is the local directory keys are made relative to.
	Root        string
	Prefix      string
	Workers     int
	QueueSize   int
	EnqueueWait time.Duration
	Attempts    int
	Logger      *log.Logger
}

type UploaderStats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	EnqueuedTotal uint64 `json:"enqueued_total"`
	DroppedTotal  uint64 `json:"dropped_total"`
	UploadedTotal uint64 `json:"uploaded_total"`
	FailedTotal   uint64 `json:"failed_total"`
	LastErrorUnix int64  `json:"last_error_unix,omitempty"`
}

type putter interface {
	PutFile(ctx context.Context, key, localPath string) error
}

// Uploader copies artifacts to the bucket from a small worker pool. A full
// queue waits EnqueueWait and then drops the path; the local file stays the
// source of truth.
type Uploader struct {
	client putter
	cfg    UploaderConfig
	jobs   chan string
	wg     sync.WaitGroup
	once   sync.Once

	enqueued atomic.Uint64
	dropped  atomic.Uint64
	uploaded atomic.Uint64
	failed   atomic.Uint64
	lastErr  atomic.Int64

	backoff func(attempt int) time.Duration
}

func NewUploader(client *Client, cfg UploaderConfig) *Uploader {
	return newUploader(client, cfg)
}

func newUploader(client putter, cfg UploaderConfig) *Uploader {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.EnqueueWait <= 0 {
		cfg.EnqueueWait = 25 * time.Millisecond
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 4
	}
	cfg.Prefix = strings.Trim(strings.ReplaceAll(cfg.Prefix, "\\", "/"), "/")
	u := &Uploader{
		client: client,
		cfg:    cfg,
		jobs:   make(chan string, cfg.QueueSize),
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * 200 * time.Millisecond
		},
	}
	for i := 0; i < cfg.Workers; i++ {
		u.wg.Add(1)
		go func() {
			defer u.wg.Done()
			for p := range u.jobs {
				u.uploadOne(p)
			}
		}()
	}
	return u
}

func (u *Uploader) Enqueue(localPath string) {
	if u == nil {
		return
	}
	u.enqueued.Add(1)
	select {
	case u.jobs <- localPath:
		return
	default:
	}
	t := time.NewTimer(u.cfg.EnqueueWait)
	defer t.Stop()
	select {
	case u.jobs <- localPath:
	case <-t.C:
		n := u.dropped.Add(1)
		u.printf("upload drop local=%s reason=queue_full dropped_total=%d", localPath, n)
	}
}

// Close drains queued uploads and waits for the workers.
func (u *Uploader) Close() {
	if u == nil {
		return
	}
	u.once.Do(func() {
		close(u.jobs)
		u.wg.Wait()
	})
}

func (u *Uploader) Stats() UploaderStats {
	if u == nil {
		return UploaderStats{}
	}
	return UploaderStats{
		QueueDepth:    len(u.jobs),
		QueueCapacity: cap(u.jobs),
		EnqueuedTotal: u.enqueued.Load(),
		DroppedTotal:  u.dropped.Load(),
		UploadedTotal: u.uploaded.Load(),
		FailedTotal:   u.failed.Load(),
		LastErrorUnix: u.lastErr.Load(),
	}
}

func (u *Uploader) uploadOne(localPath string) {
	key, err := u.objectKey(localPath)
	if err != nil {
		u.failed.Add(1)
		u.printf("upload skip local=%s err=%v", localPath, err)
		return
	}
	var lastErr error
	for attempt := 1; attempt <= u.cfg.Attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		lastErr = u.client.PutFile(ctx, key, localPath)
		cancel()
		if lastErr == nil {
			u.uploaded.Add(1)
			u.printf("uploaded key=%s", key)
			return
		}
		if attempt < u.cfg.Attempts {
			time.Sleep(u.backoff(attempt))
		}
	}
	u.failed.Add(1)
	u.lastErr.Store(time.Now().UTC().Unix())
	u.printf("upload failed key=%s err=%v", key, lastErr)
}

func (u *Uploader) objectKey(localPath string) (string, error) {
	if localPath == "" {
		return "", fmt.Errorf("empty local path")
	}
	root, err := filepath.Abs(u.cfg.Root)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside %s", abs, root)
	}
	if u.cfg.Prefix != "" {
		rel = path.Join(u.cfg.Prefix, rel)
	}
	return rel, nil
}

func (u *Uploader) printf(format string, args ...any) {
	if u.cfg.Logger != nil {
		u.cfg.Logger.Printf(format, args...)
	}
}
