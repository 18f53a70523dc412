package store

import (
	"time"

	"github.com/aouyang1/photobooth/catalog"
)

type Export struct {
	Name      string    `json:"name"`
	SessionID string    `json:"session_id"`
	LayoutID  string    `json:"layout_id"`
	FrameID   string    `json:"frame_id"`
	Framed    bool      `json:"framed"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

type BoothSettings struct {
	CountdownSeconds int    `json:"countdown_seconds"`
	DefaultLayout    string `json:"default_layout"`
	DefaultFrame     string `json:"default_frame"`
}

func DefaultBoothSettings() *BoothSettings {
	return &BoothSettings{
		CountdownSeconds: 3,
		DefaultLayout:    string(catalog.DefaultLayout),
		DefaultFrame:     catalog.DefaultFrame,
	}
}
