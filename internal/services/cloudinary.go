package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const cloudinaryFolder = "echoes"

// CloudinaryService stores attachments in Cloudinary; the stored path is the asset's secure URL.
type CloudinaryService struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryService(cloudName, apiKey, apiSecret string) (*CloudinaryService, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}

	return &CloudinaryService{
		cld: cld,
	}, nil
}

func (s *CloudinaryService) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	publicID := strings.TrimSuffix(name, path.Ext(name))

	res, err := s.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder:       cloudinaryFolder,
		PublicID:     publicID,
		ResourceType: "auto", // images land as "image", audio as "video"
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("failed to upload to Cloudinary: %s", res.Error.Message)
	}

	return res.SecureURL, nil
}

// Open is not supported; clients fetch remote assets straight from the CDN.
func (s *CloudinaryService) Open(string) (io.ReadSeekCloser, time.Time, error) {
	return nil, time.Time{}, ErrRemoteAttachment
}

func (s *CloudinaryService) Remove(ctx context.Context, assetURL string) error {
	resourceType, publicID, err := parseCloudinaryURL(assetURL)
	if err != nil {
		return err
	}

	res, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType,
	})
	if err != nil {
		return fmt.Errorf("failed to delete from Cloudinary: %w", err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("failed to delete from Cloudinary: %s", res.Error.Message)
	}
	return nil
}

func (s *CloudinaryService) URL(assetURL string) string {
	return assetURL
}

// parseCloudinaryURL extracts resource type and public id from
// https://res.cloudinary.com/<cloud>/<type>/upload/v<version>/<folder>/<name>.<ext>
func parseCloudinaryURL(assetURL string) (string, string, error) {
	u, err := url.Parse(assetURL)
	if err != nil {
		return "", "", err
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 5 || parts[2] != "upload" {
		return "", "", errors.New("not a Cloudinary asset URL")
	}

	rest := parts[3:]
	if v := rest[0]; len(v) > 1 && v[0] == 'v' && isDigits(v[1:]) {
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return "", "", errors.New("not a Cloudinary asset URL")
	}

	publicID := strings.Join(rest, "/")
	publicID = strings.TrimSuffix(publicID, path.Ext(publicID))
	return parts[1], publicID, nil
}
