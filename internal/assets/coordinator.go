package assets

import (
	"context"
	"errors"
	"fmt"
	"os"

	"log/slog"

	"github.com/PIYUSH-SATIYA/videoTubeBackend/internal/apperr"
)

const (
	RoleAvatar     = "avatar"
	RoleCoverImage = "coverImage"
)

// Upload describes one local file to push to remote storage. Optional
// uploads with an empty Path are skipped; required uploads with a missing
// file fail the whole batch before any remote call.
type Upload struct {
	Role     string
	Path     string
	Required bool
}

// Coordinator runs multi-asset uploads and undoes completed ones when a
// later step fails. It is the caller's job to invoke Rollback; the
// coordinator only guarantees that the completed subset it returns is
// accurate in upload order.
type Coordinator struct {
	storage Storage
	logger  *slog.Logger
}

func NewCoordinator(storage Storage, logger *slog.Logger) *Coordinator {
	return &Coordinator{storage: storage, logger: logger}
}

// UploadAll uploads the batch in order, stopping at the first failure. The
// returned slice always holds exactly the assets that made it to remote
// storage, so it is safe to hand to Rollback even when err is non-nil.
func (c *Coordinator) UploadAll(ctx context.Context, uploads []Upload) ([]Asset, error) {
	for _, u := range uploads {
		if !u.Required {
			continue
		}
		if u.Path == "" {
			return nil, apperr.New(apperr.CodeMissingAsset, fmt.Sprintf("%s file is missing", u.Role))
		}
		if _, err := os.Stat(u.Path); err != nil {
			return nil, apperr.Wrap(apperr.CodeMissingAsset, fmt.Sprintf("%s file is missing", u.Role), err)
		}
	}

	completed := make([]Asset, 0, len(uploads))
	for _, u := range uploads {
		if u.Path == "" {
			continue
		}
		url, handle, err := c.storage.Upload(ctx, u.Path)
		if err != nil {
			return completed, apperr.Wrap(apperr.CodeUploadFailed, fmt.Sprintf("failed to upload %s", u.Role), err)
		}
		completed = append(completed, Asset{Role: u.Role, URL: url, DeleteHandle: handle})
	}
	return completed, nil
}

// Rollback deletes the given assets in reverse upload order. Delete failures
// are logged and collected but never returned as the primary error of the
// attempt; the caller keeps its original failure.
func (c *Coordinator) Rollback(ctx context.Context, uploaded []Asset) error {
	var failures []error
	for i := len(uploaded) - 1; i >= 0; i-- {
		asset := uploaded[i]
		if err := c.storage.Delete(ctx, asset.DeleteHandle); err != nil {
			c.logger.Error("asset rollback delete failed",
				"role", asset.Role,
				"handle", asset.DeleteHandle,
				"error", err,
			)
			failures = append(failures, fmt.Errorf("delete %s: %w", asset.Role, err))
		}
	}
	return errors.Join(failures...)
}

// ByRole indexes a completed batch for callers that look assets up by role.
func ByRole(uploaded []Asset) map[string]Asset {
	m := make(map[string]Asset, len(uploaded))
	for _, a := range uploaded {
		m[a.Role] = a
	}
	return m
}
