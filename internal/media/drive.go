// Package media uploads question and cover media to a Google Drive folder.
package media

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"quiz-classroom/internal/models"
)

const uploadFields = "id, name, webViewLink, thumbnailLink"

// Drive stores files in one Drive folder and makes them readable by link.
type Drive struct {
	service  *drive.Service
	folderID string
}

// NewDrive authenticates with the service account key at credentialsFile.
func NewDrive(ctx context.Context, credentialsFile, folderID string) (*Drive, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read drive credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("parse drive credentials: %w", err)
	}
	return newDrive(ctx, folderID, option.WithHTTPClient(oauth2.NewClient(ctx, creds.TokenSource)))
}

func newDrive(ctx context.Context, folderID string, opts ...option.ClientOption) (*Drive, error) {
	service, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Drive{service: service, folderID: folderID}, nil
}

// MediaType classifies a MIME type; anything that is not an image is
// treated as video.
func MediaType(mimeType string) models.MediaType {
	if strings.HasPrefix(mimeType, "image/") {
		return models.MediaImage
	}
	return models.MediaVideo
}

// Upload stores content under name. Sharing the file publicly is best
// effort: a failure is logged and the upload still succeeds.
func (d *Drive) Upload(ctx context.Context, name, mimeType string, content io.Reader) (*models.MediaFile, error) {
	meta := &drive.File{
		Name:     name,
		MimeType: mimeType,
		Parents:  []string{d.folderID},
	}
	file, err := d.service.Files.Create(meta).
		Media(content, googleapi.ContentType(mimeType)).
		Fields(uploadFields).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}

	perm := &drive.Permission{Role: "reader", Type: "anyone"}
	if _, err := d.service.Permissions.Create(file.Id, perm).Context(ctx).Do(); err != nil {
		log.Printf("media: share %s: %v", file.Id, err)
	}

	return &models.MediaFile{
		ID:           file.Id,
		Name:         file.Name,
		URL:          file.WebViewLink,
		ThumbnailURL: file.ThumbnailLink,
		Type:         MediaType(mimeType),
	}, nil
}
