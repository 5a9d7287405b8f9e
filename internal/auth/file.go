// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/campusgpt-tui/internal/util"
)

// maxTokenSize bounds the token file read.
const maxTokenSize = 16 * 1024

// =============================================================================
// FILE PROVIDER
// =============================================================================

// FileProvider reads the token from a file and caches it.
//
// SECURITY: the file is written with 0600 permissions and Invalidate
// removes it, so a rejected token does not linger on disk.
type FileProvider struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	token    string
	loaded   bool
	onChange []func(hasToken bool)
}

// NewFileProvider creates a provider backed by path. The file is read lazily.
func NewFileProvider(path string, logger *slog.Logger) *FileProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileProvider{path: path, logger: logger}
}

// Path returns the token file location.
func (p *FileProvider) Path() string {
	return p.path
}

// Token implements CredentialProvider.
func (p *FileProvider) Token(ctx context.Context) (string, error) {
	p.mu.RLock()
	token, loaded := p.token, p.loaded
	p.mu.RUnlock()

	if !loaded {
		if err := p.Reload(); err != nil {
			return "", err
		}
		p.mu.RLock()
		token = p.token
		p.mu.RUnlock()
	}

	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// Reload re-reads the token file. A missing file means no token.
func (p *FileProvider) Reload() error {
	token, err := readToken(p.path)
	if err != nil {
		return err
	}
	p.set(token)
	return nil
}

// Save stores token atomically and caches it.
func (p *FileProvider) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrNoToken
	}
	if err := util.AtomicWriteFile(p.path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("auth: save token: %w", err)
	}
	p.set(token)
	return nil
}

// Invalidate implements CredentialProvider by forgetting the cached token
// and deleting the file.
func (p *FileProvider) Invalidate() error {
	p.set("")
	if err := os.Remove(p.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("auth: remove token: %w", err)
	}
	p.logger.Info("stored token cleared after rejection", "path", p.path)
	return nil
}

// OnChange registers fn to run whenever the cached token changes.
func (p *FileProvider) OnChange(fn func(hasToken bool)) {
	p.mu.Lock()
	p.onChange = append(p.onChange, fn)
	p.mu.Unlock()
}

func (p *FileProvider) set(token string) {
	p.mu.Lock()
	changed := !p.loaded || p.token != token
	p.token = token
	p.loaded = true
	callbacks := append([]func(bool){}, p.onChange...)
	p.mu.Unlock()

	if changed {
		for _, fn := range callbacks {
			fn(token != "")
		}
	}
}

func readToken(path string) (string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("auth: open token file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxTokenSize))
	if err != nil {
		return "", fmt.Errorf("auth: read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// =============================================================================
// WATCHING
// =============================================================================

// Watch reloads the token whenever the file is written, replaced or removed,
// until ctx is cancelled. The parent directory is watched so atomic renames
// are seen. Watch blocks; run it in its own goroutine.
func (p *FileProvider) Watch(ctx context.Context) error {
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, util.PrivateDirPerm); err != nil {
		return fmt.Errorf("auth: create token directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("auth: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("auth: watch %s: %w", dir, err)
	}

	name := filepath.Base(p.path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				if err := p.Reload(); err != nil {
					p.logger.Warn("token reload failed", "error", err)
					continue
				}
				p.logger.Debug("token file changed", "op", event.Op.String())
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn("token watcher error", "error", err)
		}
	}
}
