package images

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sumarokov-vp/estate-sync/internal/apiclient"
	"github.com/sumarokov-vp/estate-sync/internal/database"
	"github.com/sumarokov-vp/estate-sync/internal/models"
)

const downloadTimeout = 30 * time.Second

type uploadResponse struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

type remoteImage struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Sequence int    `json:"sequence"`
	IsMain   bool   `json:"is_main"`
}

type remoteImageList struct {
	Items []remoteImage `json:"items"`
}

// Service is the parallel, smaller sync path for property photos.
type Service struct {
	db         *database.Database
	client     *apiclient.Client
	logger     *logrus.Logger
	downloader *http.Client
}

func NewService(db *database.Database, client *apiclient.Client, logger *logrus.Logger) *Service {
	return &Service{
		db:         db,
		client:     client,
		logger:     logger,
		downloader: &http.Client{Timeout: downloadTimeout},
	}
}

// Push uploads the raw image for a property already known to the MLS,
// persists the returned remote id and URL, and stores a local thumbnail.
func (s *Service) Push(ctx context.Context, img *models.PropertyImage, raw []byte, propertyExternalID int64) error {
	if len(raw) == 0 || propertyExternalID == 0 {
		return nil
	}
	if !s.client.IsConfigured() {
		return nil
	}

	fileName := img.Name
	if fileName == "" {
		fileName = fmt.Sprintf("image_%s.jpg", uuid.NewString())
	}

	body, err := s.client.Upload(ctx, "/property-images/upload", "file", fileName, raw, map[string]string{
		"property_id": strconv.FormatInt(propertyExternalID, 10),
	})
	if err != nil {
		s.logger.WithError(err).WithField("image_id", img.ID).Warn("Failed to push image to API")
		return err
	}

	var resp uploadResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to decode upload response: %w", err)
	}
	if resp.ID != 0 {
		img.ExternalID = resp.ID
	}
	if resp.URL != "" {
		img.ImageURL = resp.URL
	}

	thumbnail, err := MakeThumbnail(raw)
	if err != nil {
		s.logger.WithError(err).WithField("image_id", img.ID).Warn("Failed to build thumbnail")
	} else {
		img.Thumbnail = thumbnail
	}

	if err := s.db.SaveImage(img); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"image_id":    img.ID,
		"external_id": resp.ID,
	}).Info("Pushed image to API")
	return nil
}

// DeleteRemote batch-deletes previously pushed images by remote id.
func (s *Service) DeleteRemote(ctx context.Context, externalIDs []int64) {
	if len(externalIDs) == 0 || !s.client.IsConfigured() {
		return
	}
	for _, id := range externalIDs {
		if _, err := s.client.Delete(ctx, fmt.Sprintf("/property-images/%d", id)); err != nil {
			s.logger.WithError(err).WithField("external_id", id).Warn("Failed to delete image from API")
			continue
		}
		s.logger.WithField("external_id", id).Info("Deleted image from API")
	}
}

// PullForProperty diffs the remote image list against local images that
// already carry a remote id. Known images get a URL refresh only; genuinely
// new remote images are downloaded and thumbnailed. Download failures leave
// the record without a thumbnail rather than aborting the pull.
func (s *Service) PullForProperty(ctx context.Context, property *models.Property) error {
	if property.ExternalID == 0 || !s.client.IsConfigured() {
		return nil
	}

	params := url.Values{"property_id": []string{strconv.FormatInt(property.ExternalID, 10)}}
	body, err := s.client.Get(ctx, "/property-images", params)
	if err != nil {
		return err
	}

	var list remoteImageList
	if err := json.Unmarshal(body, &list); err != nil {
		return fmt.Errorf("failed to decode image list: %w", err)
	}
	if len(list.Items) == 0 {
		return nil
	}

	existing, err := s.db.SyncedImagesForProperty(property.ID)
	if err != nil {
		return err
	}
	existingByRemoteID := make(map[int64]*models.PropertyImage, len(existing))
	for i := range existing {
		existingByRemoteID[existing[i].ExternalID] = &existing[i]
	}

	for _, item := range list.Items {
		if item.ID == 0 {
			continue
		}

		if known, ok := existingByRemoteID[item.ID]; ok {
			if item.URL != "" && known.ImageURL != item.URL {
				known.ImageURL = item.URL
				if err := s.db.SaveImage(known); err != nil {
					return err
				}
			}
			continue
		}

		var thumbnail []byte
		if item.URL != "" {
			raw, err := s.download(ctx, item.URL)
			if err != nil {
				s.logger.WithError(err).WithField("url", item.URL).Warn("Failed to download image")
			} else if thumbnail, err = MakeThumbnail(raw); err != nil {
				s.logger.WithError(err).WithField("url", item.URL).Warn("Failed to build thumbnail")
				thumbnail = nil
			}
		}

		img := models.PropertyImage{
			PropertyID: property.ID,
			Name:       item.Name,
			Sequence:   item.Sequence,
			IsMain:     item.IsMain,
			Thumbnail:  thumbnail,
			ImageURL:   item.URL,
			ExternalID: item.ID,
		}
		if img.Sequence == 0 {
			img.Sequence = 10
		}
		if err := s.db.CreateImage(&img); err != nil {
			return err
		}
	}

	s.logger.WithFields(logrus.Fields{
		"property_id": property.ID,
		"external_id": property.ExternalID,
		"count":       len(list.Items),
	}).Info("Pulled images for property")
	return nil
}

func (s *Service) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.downloader.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
