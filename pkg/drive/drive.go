// Package drive wraps the Google Drive client with the folder and upload
// helpers the organize step needs.
package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"

// Client wraps the generated Drive service.
type Client struct {
	service *gdrive.Service
	logger  *log.Logger
}

// New builds a Client authenticated with the credentials JSON at path.
func New(ctx context.Context, credentialsFile string, logger *log.Logger) (*Client, error) {
	if credentialsFile == "" {
		return nil, fmt.Errorf("drive credentials file is not configured")
	}
	service, err := gdrive.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gdrive.DriveScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Client{service: service, logger: logger}, nil
}

// NewOAuth builds a Client from an OAuth client secret file plus a stored
// token, the flow personal accounts use. The token must already exist; the
// interactive consent step is out of scope here.
func NewOAuth(ctx context.Context, credentialsFile, tokenFile string, logger *log.Logger) (*Client, error) {
	secret, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth credentials: %w", err)
	}
	cfg, err := google.ConfigFromJSON(secret, gdrive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth credentials: %w", err)
	}

	raw, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth token: %w", err)
	}
	token := &oauth2.Token{}
	if err := json.Unmarshal(raw, token); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}

	service, err := gdrive.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Client{service: service, logger: logger}, nil
}

// NewWithService wraps an already built service.
func NewWithService(service *gdrive.Service, logger *log.Logger) *Client {
	return &Client{service: service, logger: logger}
}

// VerifyFolder checks that id exists and is a folder the caller can see.
func (c *Client) VerifyFolder(ctx context.Context, id string) error {
	file, err := c.service.Files.Get(id).
		Fields("id, name, mimeType").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("drive folder %s is not accessible: %w", id, err)
	}
	if file.MimeType != folderMimeType {
		return fmt.Errorf("drive item %s is %s, not a folder", id, file.MimeType)
	}
	c.logger.Debug("drive folder verified", "id", id, "name", file.Name)
	return nil
}

// EnsureFolder returns the ID of the child folder called name under parent,
// creating it when absent.
func (c *Client) EnsureFolder(ctx context.Context, parent, name string) (string, error) {
	query := fmt.Sprintf("name = '%s' and '%s' in parents and mimeType = '%s' and trashed = false",
		escapeQuery(name), escapeQuery(parent), folderMimeType)
	list, err := c.service.Files.List().
		Q(query).
		Fields("files(id, name)").
		PageSize(5).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("list drive folder %q: %w", name, err)
	}
	if len(list.Files) > 0 {
		return list.Files[0].Id, nil
	}

	created, err := c.service.Files.Create(&gdrive.File{
		Name:     name,
		MimeType: folderMimeType,
		Parents:  []string{parent},
	}).
		Fields("id").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("create drive folder %q: %w", name, err)
	}
	c.logger.Debug("drive folder created", "name", name, "id", created.Id)
	return created.Id, nil
}

// Upload sends the file at path into folder, keeping its base name.
func (c *Client) Upload(ctx context.Context, folder, path string) error {
	handle, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer handle.Close()

	_, err = c.service.Files.Create(&gdrive.File{
		Name:    filepath.Base(path),
		Parents: []string{folder},
	}).
		Media(handle).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("upload %s: %w", filepath.Base(path), err)
	}
	return nil
}

// UploadDir mirrors the flat files of dir into folder and reports how many
// uploads succeeded and failed. Subdirectories become child folders.
func (c *Client) UploadDir(ctx context.Context, folder, dir string) (uploaded, failed int, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("read %s: %w", dir, err)
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			child, err := c.EnsureFolder(ctx, folder, entry.Name())
			if err != nil {
				c.logger.Warn("skipping drive subfolder", "dir", entry.Name(), "error", err)
				failed++
				continue
			}
			up, fail, err := c.UploadDir(ctx, child, path)
			uploaded += up
			failed += fail
			if err != nil {
				return uploaded, failed, err
			}
			continue
		}
		if err := c.Upload(ctx, folder, path); err != nil {
			c.logger.Warn("drive upload failed", "file", entry.Name(), "error", err)
			failed++
			continue
		}
		uploaded++
	}
	c.logger.Info("drive upload finished", "dir", dir, "uploaded", uploaded, "failed", failed)
	return uploaded, failed, nil
}

// escapeQuery guards the single quotes Drive query strings are delimited
// with.
func escapeQuery(s string) string {
	return strings.ReplaceAll(s, `'`, `\'`)
}
