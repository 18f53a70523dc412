package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"time"

	"github.com/aouyang1/photobooth/util"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	mapset "github.com/deckarep/golang-set/v2"
)

const (
	remoteCheckInterval = time.Duration(1 * time.Hour)
	remoteSyncTimeout   = time.Duration(30 * time.Minute)
)

type s3API interface {
	s3.ListObjectsV2APIClient
	manager.DownloadAPIClient
}

// RemoteSync mirrors a bucket of frame artwork into the local frames
// directory. Keys follow the same <layout>/<frame>.png layout as the
// directory.
type RemoteSync struct {
	client s3API

	s3Bucket   string
	outputPath string

	Updated chan bool
}

func NewRemoteSync(profile, bucket, outputPath string) (*RemoteSync, error) {
	if bucket == "" {
		return nil, errors.New("no s3 bucket provided in environment variable PB_S3_BUCKET")
	}

	opts := []func(*config.LoadOptions) error{}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}

	// Load the Shared AWS Configuration (~/.aws/config)
	ctxCfg, cancelCfg := context.WithTimeout(context.Background(), time.Duration(3*time.Second))
	cfg, err := config.LoadDefaultConfig(ctxCfg, opts...)
	cancelCfg()
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return newRemoteSync(s3.NewFromConfig(cfg), bucket, outputPath), nil
}

func newRemoteSync(client s3API, bucket, outputPath string) *RemoteSync {
	return &RemoteSync{
		client:     client,
		s3Bucket:   bucket,
		outputPath: outputPath,
		Updated:    make(chan bool, 1),
	}
}

func (r *RemoteSync) downloadObject(ctx context.Context, key string) error {
	downloader := manager.NewDownloader(r.client)

	dst := filepath.Join(r.outputPath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("unable to create directory for s3 download, %s, %w", key, err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("unable to create file for s3 download, %s, %w", key, err)
	}
	defer f.Close()

	if _, err := downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(r.s3Bucket),
		Key:    aws.String(key),
	}); err != nil {
		os.Remove(dst)
		return fmt.Errorf("unable to download object from s3, %s, %w", key, err)
	}
	return nil
}

func (r *RemoteSync) getLocalFiles() (mapset.Set[string], error) {
	localFiles := mapset.NewSet[string]()
	err := filepath.WalkDir(r.outputPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !util.IsSupportedImage(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(r.outputPath, p)
		if err != nil {
			return err
		}
		localFiles.Add(filepath.ToSlash(rel))
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("unable to read directory, %s, %w", r.outputPath, err)
	}
	return localFiles, nil
}

func (r *RemoteSync) getRemoteFiles(ctx context.Context) (mapset.Set[string], error) {
	remoteFiles := mapset.NewSet[string]()
	paginator := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.s3Bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list bucket %s: %w", r.s3Bucket, err)
		}
		for object := range slices.Values(page.Contents) {
			key := aws.ToString(object.Key)
			if !util.IsSupportedImage(key) || path.Clean(key) != key || path.IsAbs(key) {
				continue
			}
			remoteFiles.Add(key)
		}
	}

	if remoteFiles.Cardinality() == 0 {
		slog.Info("no remote frame artwork found", "bucket", r.s3Bucket)
	}
	return remoteFiles, nil
}

// SyncFolder downloads keys missing locally and removes local files that are
// no longer in the bucket. Updated is signalled when anything changed.
func (r *RemoteSync) SyncFolder(ctx context.Context) error {
	localFiles, err := r.getLocalFiles()
	if err != nil {
		return err
	}

	remoteFiles, err := r.getRemoteFiles(ctx)
	if err != nil {
		return err
	}

	toDelete := localFiles.Difference(remoteFiles).ToSlice()
	toDownload := remoteFiles.Difference(localFiles).ToSlice()
	changed := false
	if len(toDelete) > 0 {
		slog.Info("deleting local frame artwork", "count", len(toDelete), "names", toDelete)
		for name := range slices.Values(toDelete) {
			if err := os.Remove(filepath.Join(r.outputPath, filepath.FromSlash(name))); err != nil {
				slog.Warn("unable to remove local file", "name", name, "error", err)
				continue
			}
			changed = true
		}
	}
	if len(toDownload) > 0 {
		slog.Info("downloading frame artwork", "count", len(toDownload), "names", toDownload)
		for name := range slices.Values(toDownload) {
			if err := r.downloadObject(ctx, name); err != nil {
				slog.Warn("error while downloading s3 object", "name", name, "error", err)
				continue
			}
			changed = true
		}
	}

	if changed {
		select {
		case r.Updated <- true:
		default:
		}
	}
	return nil
}

func (r *RemoteSync) sync() {
	ctx, cancel := context.WithTimeout(context.Background(), remoteSyncTimeout)
	defer cancel()
	if err := r.SyncFolder(ctx); err != nil {
		slog.Warn("error while syncing with remote", "error", err)
	}
}

// Run syncs once immediately and then hourly until ctx is done. Updated is
// closed on return.
func (r *RemoteSync) Run(ctx context.Context) {
	defer close(r.Updated)

	ticker := time.NewTicker(remoteCheckInterval)
	defer ticker.Stop()

	r.sync()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sync()
		}
	}
}
