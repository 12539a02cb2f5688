package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/in4it/imagepipe/pkg/api"
	"github.com/in4it/imagepipe/pkg/storage/storeerr"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("imagepipe.storage.local")

// LocalStorage keeps one JSON document per image in a directory.
type LocalStorage struct {
	config Config
	dir    string
	mu     sync.Mutex
}
type Config struct {
	Path string
}

func NewLocalStorage(config Config) (*LocalStorage, error) {
	dir := config.Path
	if dir == "" {
		return nil, errors.New("local storage: no path configured")
	}
	if !filepath.IsAbs(dir) {
		wd, err := os.Getwd()
		if err == nil {
			dir = filepath.Join(wd, dir)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("local storage: %w", err)
	}
	return &LocalStorage{config: config, dir: dir}, nil
}

func (l *LocalStorage) filename(key string) string {
	return filepath.Join(l.dir, url.PathEscape(key)+".json")
}

func (l *LocalStorage) PutImage(ctx context.Context, image api.Image) error {
	if image.Name == "" {
		return errors.New("local storage: image without name")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.read(image.Name); err == nil {
		logger.Debugf("image %s already exists, leaving it", image.Name)
		return nil
	} else if !errors.Is(err, storeerr.ErrNotExist) {
		return err
	}
	return l.write(image)
}

func (l *LocalStorage) UpdateAttribute(ctx context.Context, key, attribute, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	image, err := l.read(key)
	if err != nil {
		return err
	}
	if !image.Set(attribute, value) {
		return fmt.Errorf("local storage: unknown attribute %s", attribute)
	}
	return l.write(image)
}

func (l *LocalStorage) DeleteImage(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := os.Remove(l.filename(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (l *LocalStorage) GetImage(ctx context.Context, key string) (api.Image, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read(key)
}

func (l *LocalStorage) read(key string) (api.Image, error) {
	var image api.Image
	contents, err := os.ReadFile(l.filename(key))
	if errors.Is(err, os.ErrNotExist) {
		return image, storeerr.ErrNotExist
	}
	if err != nil {
		return image, err
	}
	if err := json.Unmarshal(contents, &image); err != nil {
		return image, fmt.Errorf("local storage: %s: %w", key, err)
	}
	return image, nil
}

// write replaces the document through a rename so readers never see a
// partial file.
func (l *LocalStorage) write(image api.Image) error {
	contents, err := json.Marshal(image)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(l.dir, ".image-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(contents); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	logger.Debugf("Writing %s", l.filename(image.Name))
	return os.Rename(tmp.Name(), l.filename(image.Name))
}
