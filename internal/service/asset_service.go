package service

import (
	"context"
	"errors"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/apperr"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/models"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/rbac"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/storage"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/pkg/logger"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	imageCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_image_cache_hits_total",
		Help: "Image listing cache hits.",
	})
	imageCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_image_cache_misses_total",
		Help: "Image listing cache misses.",
	})
)

// Upload is one file received from a client.
type Upload struct {
	Name   string
	Reader io.Reader
}

// AssetService fronts the remote asset store: uploads, downloads and cached
// image listings.
type AssetService struct {
	store storage.AssetStore
	cache *expirable.LRU[string, []storage.Entry]
}

func NewAssetService(store storage.AssetStore, cacheSize int, cacheTTL time.Duration) *AssetService {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	return &AssetService{
		store: store,
		cache: expirable.NewLRU[string, []storage.Entry](cacheSize, nil, cacheTTL),
	}
}

// Upload stores a file under folder and returns its path. Writing into the
// model tree can replace a model's files, so it needs edit_models.
func (s *AssetService) Upload(ctx context.Context, actor *models.User, folder string, up Upload) (string, error) {
	if err := rbac.Require(actor, rbac.ActionUploadModels); err != nil {
		return "", err
	}

	dir, err := storage.Clean(folder)
	if err != nil {
		return "", apperr.ValidationFields("invalid folder", map[string]string{"folder": err.Error()})
	}
	if inModelTree(dir) {
		if err := rbac.Require(actor, rbac.ActionEditModels); err != nil {
			return "", err
		}
	}
	if up.Name == "" || up.Reader == nil {
		return "", apperr.ValidationFields("file is required", map[string]string{"file": "required"})
	}

	p, err := storage.Join(dir, up.Name)
	if err != nil {
		return "", apperr.ValidationFields("invalid file name", map[string]string{"file": err.Error()})
	}
	if err := s.put(ctx, p, up.Reader); err != nil {
		return "", err
	}

	logger.Log.Info("Asset uploaded",
		zap.String("path", p),
		zap.String("actor_id", actor.ID.String()),
	)
	return p, nil
}

// Fetch opens a stored image. Archives are only served by the audited model
// download. The caller closes the reader.
func (s *AssetService) Fetch(ctx context.Context, actor *models.User, p string) (io.ReadCloser, string, error) {
	if err := rbac.Require(actor, rbac.ActionRead); err != nil {
		return nil, "", err
	}

	cleaned, err := storage.Clean(p)
	if err != nil {
		return nil, "", apperr.ValidationFields("invalid path", map[string]string{"path": err.Error()})
	}
	if !servable(cleaned) {
		return nil, "", apperr.Forbidden("only images are served here; use the model download")
	}

	rc, err := s.store.Fetch(ctx, cleaned)
	if err != nil {
		return nil, "", assetError("fetch asset", err)
	}

	contentType := mime.TypeByExtension(path.Ext(cleaned))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return rc, contentType, nil
}

// ListImages returns the image files directly inside folder. Store failures
// degrade to an empty list.
func (s *AssetService) ListImages(ctx context.Context, actor *models.User, folder string) ([]storage.Entry, error) {
	if err := rbac.Require(actor, rbac.ActionRead); err != nil {
		return nil, err
	}

	dir, err := storage.Clean(folder)
	if err != nil {
		return nil, apperr.ValidationFields("invalid folder", map[string]string{"folder": err.Error()})
	}

	if cached, ok := s.cache.Get(dir); ok {
		imageCacheHitsTotal.Inc()
		return cached, nil
	}
	imageCacheMissesTotal.Inc()

	entries, err := s.store.List(ctx, dir)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.Log.Warn("Failed to list images",
				zap.String("folder", dir),
				zap.Error(err),
			)
			return []storage.Entry{}, nil
		}
		entries = nil
	}

	images := make([]storage.Entry, 0, len(entries))
	for _, e := range entries {
		if e.IsImage() {
			images = append(images, e)
		}
	}
	s.cache.Add(dir, images)
	return images, nil
}

const modelRoot = "models"

func inModelTree(dir string) bool {
	return dir == modelRoot || strings.HasPrefix(dir, modelRoot+"/")
}

// servable reports whether p may be streamed to any signed-in user: image
// files outside the model tree, or inside a model's screenshots folder.
func servable(p string) bool {
	if !storage.IsImagePath(p) {
		return false
	}
	if !inModelTree(p) {
		return true
	}
	parts := strings.Split(p, "/")
	return len(parts) == 4 && parts[2] == "screenshots"
}

// put stores r at p and drops the cached listing of its folder.
func (s *AssetService) put(ctx context.Context, p string, r io.Reader) error {
	if err := s.store.Store(ctx, p, r); err != nil {
		logger.Log.Error("Failed to store asset",
			zap.String("path", p),
			zap.Error(err),
		)
		return apperr.Upstream("store asset", err)
	}
	s.cache.Remove(path.Dir(p))
	return nil
}

// discard deletes p, logging instead of failing.
func (s *AssetService) discard(ctx context.Context, p string) {
	if p == "" {
		return
	}
	if err := s.store.Delete(ctx, p); err != nil && !errors.Is(err, storage.ErrNotFound) {
		assetDeleteFailuresTotal.Inc()
		logger.Log.Warn("Failed to delete replaced asset",
			zap.String("path", p),
			zap.Error(err),
		)
	}
	s.cache.Remove(path.Dir(p))
}

// discardFolder removes folder after a failed create.
func (s *AssetService) discardFolder(ctx context.Context, folder string) {
	if err := s.store.DeleteFolder(ctx, folder); err != nil && !errors.Is(err, storage.ErrNotFound) {
		logger.Log.Warn("Failed to clean up model folder",
			zap.String("folder", folder),
			zap.Error(err),
		)
	}
	s.cache.Remove(folder)
	s.cache.Remove(folder + "/screenshots")
}

func (s *AssetService) open(ctx context.Context, p string) (io.ReadCloser, error) {
	rc, err := s.store.Fetch(ctx, p)
	if err != nil {
		return nil, assetError("fetch asset", err)
	}
	return rc, nil
}

func assetError(op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("file not found")
	}
	logger.Log.Error("Asset store failure", zap.String("op", op), zap.Error(err))
	return apperr.Upstream(op, err)
}
