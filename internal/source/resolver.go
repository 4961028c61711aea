// Package source resolves document references to local files. A reference is
// a filesystem path, a file:// URL, an http(s):// URL or an s3://bucket/key
// URL; remote references are downloaded to a temp file first.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// Resolve returns a local path for ref and a cleanup func removing any temp
// file it created. Cleanup is never nil.
func Resolve(ctx context.Context, ref string) (string, func(), error) {
	// Strip optional #page fragment if present
	if i := strings.Index(ref, "#"); i >= 0 {
		ref = ref[:i]
	}

	noop := func() {}
	switch {
	case strings.HasPrefix(ref, "s3://"):
		local, err := downloadS3ToTemp(ctx, ref)
		if err != nil {
			return "", noop, err
		}
		return local, func() { os.Remove(local) }, nil
	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		local, err := downloadHTTPToTemp(ctx, ref)
		if err != nil {
			return "", noop, err
		}
		return local, func() { os.Remove(local) }, nil
	case strings.HasPrefix(ref, "file://"):
		return strings.TrimPrefix(ref, "file://"), noop, nil
	default:
		// treat as filesystem path
		return ref, noop, nil
	}
}

func downloadHTTPToTemp(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http %d", resp.StatusCode)
	}
	f, err := os.CreateTemp("", "pdfdl-*.pdf")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func downloadS3ToTemp(ctx context.Context, s3url string) (string, error) {
	// s3://bucket/key
	path := strings.TrimPrefix(s3url, "s3://")
	slash := strings.Index(path, "/")
	if slash <= 0 {
		return "", fmt.Errorf("invalid s3 url: %s", s3url)
	}
	bucket := path[:slash]
	key := path[slash+1:]

	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return "", err
	}
	downloader := manager.NewDownloader(s3.NewFromConfig(cfg))

	// .pdf extension keeps downstream readers happy
	f, err := os.CreateTemp("", "s3pdf-*.pdf")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := downloader.Download(ctx, f, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	log.Info().Str("bucket", bucket).Str("key", key).Str("file", filepath.Base(f.Name())).Msg("downloaded s3 pdf to temp")
	return f.Name(), nil
}
