package httpapi

import "github.com/romariotrain/video-ingest/internal/media/models"

type VideoResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	URL         string  `json:"url"`
}

type VideoDetailResponse struct {
	VideoResponse
	HasThumbnail bool `json:"has_thumbnail"`
}

type UploadResponse struct {
	Message string        `json:"message"`
	Video   VideoResponse `json:"video"`
}

func toVideoResponse(v *models.Video) VideoResponse {
	return VideoResponse{
		ID:          v.ID,
		Name:        v.Name,
		Description: v.Description,
		URL:         v.URL,
	}
}
