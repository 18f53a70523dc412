// Package models tracks all api models for request and responses
package models

import (
	"time"

	"github.com/aouyang1/photobooth/catalog"
	"github.com/aouyang1/photobooth/store"
)

type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

type LayoutResponse struct {
	catalog.Layout
	Frames []catalog.Frame `json:"frames"`
}

type SessionResponse struct {
	ID        string         `json:"id"`
	Layout    catalog.Layout `json:"layout"`
	Frame     catalog.Frame  `json:"frame"`
	ShotIndex int            `json:"shot_index"`
	Shots     int            `json:"shots"`
	Complete  bool           `json:"complete"`
	Caption   string         `json:"caption"`
	Camera    CameraResponse `json:"camera"`
}

type CameraResponse struct {
	Held       bool   `json:"held"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	FacingMode string `json:"facing_mode"`
}

type FeedErrorRequest struct {
	Reason string `json:"reason"`
}

type CaptionRequest struct {
	Caption string `json:"caption"`
}

type CaptionResponse struct {
	Caption   string `json:"caption"`
	Truncated bool   `json:"truncated"`
}

type ExportResponse struct {
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	QRURL     string    `json:"qr_url"`
	LayoutID  string    `json:"layout_id"`
	FrameID   string    `json:"frame_id"`
	Framed    bool      `json:"framed"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
	Warnings  []string  `json:"warnings,omitempty"`
}

type ExportListResponse struct {
	Exports []store.Export `json:"exports"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
}

type PreviewPendingResponse struct {
	Pending bool   `json:"pending"`
	Message string `json:"message"`
}

type StatusResponse struct {
	SessionID       string  `json:"session_id"`
	CameraHeld      bool    `json:"camera_held"`
	PreviewPending  bool    `json:"preview_pending"`
	ExportCount     int     `json:"export_count"`
	DiskFreeBytes   uint64  `json:"disk_free_bytes"`
	DiskUsedPercent float64 `json:"disk_used_percent"`
}
