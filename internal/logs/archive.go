package logs

import (
	"context"
	"fmt"
	"os"
	"path"
)

// FolderStore moves whole prefixes between the object store and disk.
type FolderStore interface {
	DownloadFolder(ctx context.Context, bucket, prefix, dir string) (int, error)
	DeleteFolder(ctx context.Context, bucket, prefix string) (int, error)
	UploadFolder(ctx context.Context, bucket, dir, prefix string) (int, error)
}

// ArchivePrefix is the object store prefix holding a deployment's shipped
// logs.
func ArchivePrefix(name string) string {
	return path.Join("testnet-logs", name)
}

// Get downloads the archived logs of a deployment into logs/<name> under
// root and returns the number of files written.
func Get(ctx context.Context, store FolderStore, bucket, root, name string) (int, error) {
	dest := Dir(root, name)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dest, err)
	}
	n, err := store.DownloadFolder(ctx, bucket, ArchivePrefix(name), dest)
	if err != nil {
		return n, fmt.Errorf("failed to download logs for %s: %w", name, err)
	}
	return n, nil
}

// Upload archives logs/<name> under root to the deployment's prefix.
func Upload(ctx context.Context, store FolderStore, bucket, root, name string) (int, error) {
	src := Dir(root, name)
	if _, err := os.Stat(src); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrLogsNotRetrieved, name)
	}
	n, err := store.UploadFolder(ctx, bucket, src, ArchivePrefix(name))
	if err != nil {
		return n, fmt.Errorf("failed to upload logs for %s: %w", name, err)
	}
	return n, nil
}

// Remove deletes the archived logs of a deployment.
func Remove(ctx context.Context, store FolderStore, bucket, name string) (int, error) {
	n, err := store.DeleteFolder(ctx, bucket, ArchivePrefix(name))
	if err != nil {
		return n, fmt.Errorf("failed to remove logs for %s: %w", name, err)
	}
	return n, nil
}

// PrepareCopy empties logs/<name> under root ahead of a playbook driven
// copy and returns its path.
func PrepareCopy(root, name string) (string, error) {
	dest := Dir(root, name)
	if err := os.RemoveAll(dest); err != nil {
		return "", fmt.Errorf("failed to remove existing %s: %w", dest, err)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dest, err)
	}
	return dest, nil
}
