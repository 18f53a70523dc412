// Package api is the booth web server
package api

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aouyang1/photobooth/api/models"
	"github.com/aouyang1/photobooth/assets"
	"github.com/aouyang1/photobooth/capture"
	"github.com/aouyang1/photobooth/catalog"
	"github.com/aouyang1/photobooth/export"
	"github.com/aouyang1/photobooth/session"
	"github.com/aouyang1/photobooth/store"
	"github.com/aouyang1/photobooth/util"
	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/disk"
	"golang.org/x/text/unicode/norm"
)

const (
	maxFrameBytes    = 16 << 20
	sniffLen         = 512
	maxCountdown     = 10
	defaultQRSize    = 256
	shutdownTimeout  = 10 * time.Second
	defaultFeedError = "camera permission denied or device unavailable"
)

type ServerOptions struct {
	IdleTimeout time.Duration

	// RemoteSync and Frames are set together when frame artwork is mirrored
	// from S3.
	RemoteSync *assets.RemoteSync
	Frames     *assets.Cache
}

type WebServer struct {
	router   *gin.Engine
	db       *store.Database
	booth    *Booth
	exporter *export.Exporter
	hub      *Hub
	opts     ServerOptions

	idleManager   *IdleManager
	exportIndexer *ExportIndexer
}

func NewWebServer(db *store.Database, booth *Booth, exporter *export.Exporter, hub *Hub, opts ServerOptions) (*WebServer, error) {
	ws := &WebServer{
		router:   gin.Default(),
		db:       db,
		booth:    booth,
		exporter: exporter,
		hub:      hub,
		opts:     opts,
	}

	if opts.IdleTimeout > 0 {
		idleManager, err := NewIdleManager(booth, opts.IdleTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize idle manager: %w", err)
		}
		ws.idleManager = idleManager
	}
	exportIndexer, err := NewExportIndexer(db, exporter)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize export indexer: %w", err)
	}
	ws.exportIndexer = exportIndexer

	ws.setupRoutes()
	return ws, nil
}

// Handler exposes the router, mainly for tests.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

func (ws *WebServer) setupRoutes() {
	ws.router.GET("/healthcheck", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	ws.router.GET("/ws", ws.hub.handleWS)

	ws.router.GET("/layouts", ws.handleListLayouts)
	ws.router.GET("/layouts/:layout/frames", ws.handleListFrames)

	ws.router.POST("/sessions", ws.handleStartSession)
	ws.router.GET("/session", ws.handleGetSession)
	ws.router.POST("/session/feed", ws.handleFeedPush)
	ws.router.POST("/session/feed/error", ws.handleFeedError)
	ws.router.POST("/session/camera", ws.handleAcquireCamera)
	ws.router.DELETE("/session/camera", ws.handleReleaseCamera)
	ws.router.POST("/session/capture", ws.handleCapture)
	ws.router.PUT("/session/caption", ws.handleCaption)
	ws.router.POST("/session/reset", ws.handleReset)
	ws.router.GET("/session/preview", ws.handlePreview)
	ws.router.POST("/session/export", ws.handleExport)

	ws.router.GET("/exports", ws.handleListExports)
	ws.router.GET("/exports/:name", ws.handleDownloadExport)
	ws.router.GET("/exports/:name/qr", ws.handleExportQR)
	ws.router.DELETE("/exports/:name", ws.handleDeleteExport)

	ws.router.GET("/settings", ws.handleGetSettings)
	ws.router.PUT("/settings", ws.handleUpdateSettings)
	ws.router.GET("/status", ws.handleStatus)
}

// Start runs the background workers and serves HTTP on addr until ctx is
// done. The camera is released on the way out.
func (ws *WebServer) Start(ctx context.Context, addr string) error {
	go ws.hub.Run(ctx)
	go ws.booth.Run(ctx)
	go ws.exportIndexer.Run(ctx)
	if ws.idleManager != nil {
		go ws.idleManager.Run(ctx)
	}
	if ws.opts.RemoteSync != nil && ws.opts.Frames != nil {
		go ws.opts.Frames.Watch(ws.opts.RemoteSync.Updated, func() {
			slog.Info("found new frame artwork")
			ws.hub.Publish(Event{Type: EventFramesUpdated})
		})
		go ws.opts.RemoteSync.Run(ctx)
	}
	defer ws.booth.Close()

	srv := &http.Server{
		Addr:              addr,
		Handler:           ws.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	slog.Info("starting web server", "addr", addr)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down web server: %w", err)
		}
		slog.Info("web server stopped")
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	}
}

// writeError maps domain errors onto status codes.
func writeError(c *gin.Context, err error) {
	var unavailable *capture.UnavailableError
	switch {
	case errors.As(err, &unavailable):
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "camera unavailable", Reason: unavailable.Reason})
	case errors.Is(err, capture.ErrCameraUnavailable):
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, session.ErrSessionFull),
		errors.Is(err, ErrCaptureInProgress),
		errors.Is(err, ErrSessionIncomplete):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, export.ErrInvalidName):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrNotFound), errors.Is(err, os.ErrNotExist):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
	default:
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
	}
}

func (ws *WebServer) handleListLayouts(c *gin.Context) {
	layouts := catalog.Layouts()
	resp := make([]models.LayoutResponse, len(layouts))
	for i, l := range layouts {
		resp[i] = models.LayoutResponse{Layout: l, Frames: catalog.FramesFor(l.ID)}
	}
	c.JSON(http.StatusOK, resp)
}

func (ws *WebServer) handleListFrames(c *gin.Context) {
	id := catalog.LayoutID(c.Param("layout"))
	if _, ok := catalog.LookupLayout(id); !ok {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: fmt.Sprintf("Unknown layout: %s", id)})
		return
	}
	c.JSON(http.StatusOK, catalog.FramesFor(id))
}

func (ws *WebServer) sessionResponse() models.SessionResponse {
	snap := ws.booth.Session().Snapshot()
	return models.SessionResponse{
		ID:        snap.ID,
		Layout:    snap.Layout,
		Frame:     snap.Frame,
		ShotIndex: snap.ShotIndex,
		Shots:     snap.Layout.Shots,
		Complete:  snap.Complete,
		Caption:   snap.Caption,
		Camera:    ws.cameraResponse(),
	}
}

func (ws *WebServer) cameraResponse() models.CameraResponse {
	return models.CameraResponse{
		Held:       ws.booth.CameraHeld(),
		Width:      capture.PreferredWidth,
		Height:     capture.PreferredHeight,
		FacingMode: capture.FacingMode,
	}
}

func (ws *WebServer) handleStartSession(c *gin.Context) {
	ws.booth.StartSession(c.Query("layout"), c.Query("frame"))
	c.JSON(http.StatusCreated, ws.sessionResponse())
}

func (ws *WebServer) handleGetSession(c *gin.Context) {
	c.JSON(http.StatusOK, ws.sessionResponse())
}

// handleFeedPush accepts a camera frame either as a raw image body or as the
// "frame" field of a multipart form.
func (ws *WebServer) handleFeedPush(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFrameBytes)

	var r io.Reader = c.Request.Body
	contentType := c.ContentType()
	if strings.HasPrefix(contentType, "multipart/") {
		file, err := c.FormFile("frame")
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "No frame provided"})
			return
		}
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Failed to read frame: %v", err)})
			return
		}
		defer f.Close()
		r = f
		contentType = file.Header.Get("Content-Type")
	}
	contentType, _, _ = strings.Cut(contentType, ";")
	contentType = strings.TrimSpace(contentType)

	br := bufio.NewReaderSize(r, sniffLen)
	if contentType == "" || contentType == "application/octet-stream" {
		// short bodies return fewer bytes along with an error; sniff what is there
		head, _ := br.Peek(sniffLen)
		contentType, _, _ = strings.Cut(http.DetectContentType(head), ";")
	}
	if !util.SupportedContentTypes.Contains(contentType) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: fmt.Sprintf("Unsupported content type: %s. Supported: image/png, image/jpeg", contentType),
		})
		return
	}

	img, err := capture.DecodeFrame(br)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	ws.booth.Feed().Push(img)
	c.Status(http.StatusNoContent)
}

func (ws *WebServer) handleFeedError(c *gin.Context) {
	var req models.FeedErrorRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Invalid request body: %v", err)})
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = defaultFeedError
	}
	slog.Warn("browser reported camera failure", "reason", reason)
	ws.booth.Feed().Fail(reason)
	c.Status(http.StatusNoContent)
}

func (ws *WebServer) handleAcquireCamera(c *gin.Context) {
	if err := ws.booth.AcquireCamera(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws.cameraResponse())
}

func (ws *WebServer) handleReleaseCamera(c *gin.Context) {
	ws.booth.ReleaseCamera()
	c.JSON(http.StatusOK, ws.cameraResponse())
}

func (ws *WebServer) handleCapture(c *gin.Context) {
	if _, err := ws.booth.Capture(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws.sessionResponse())
}

func (ws *WebServer) handleCaption(c *gin.Context) {
	var req models.CaptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Invalid request body: %v", err)})
		return
	}
	caption := ws.booth.SetCaption(req.Caption)
	c.JSON(http.StatusOK, models.CaptionResponse{
		Caption:   caption,
		Truncated: utf8.RuneCountInString(norm.NFC.String(req.Caption)) > session.MaxCaptionLength,
	})
}

func (ws *WebServer) handleReset(c *gin.Context) {
	ws.booth.Reset()
	c.JSON(http.StatusOK, ws.sessionResponse())
}

func (ws *WebServer) handlePreview(c *gin.Context) {
	p, ok, pending := ws.booth.Preview()
	if !ok {
		msg := "No preview yet"
		if pending {
			msg = "Preview is being rendered"
		}
		c.JSON(http.StatusAccepted, models.PreviewPendingResponse{Pending: pending, Message: msg})
		return
	}

	var buf bytes.Buffer
	if err := export.Encode(&buf, p.Result.Image); err != nil {
		writeError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Header("X-Preview-Seq", strconv.FormatUint(p.Seq, 10))
	c.Header("X-Preview-Pending", strconv.FormatBool(pending))
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (ws *WebServer) handleExport(c *gin.Context) {
	art, warnings, err := ws.booth.Export(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.ExportResponse{
		Name:      art.Name,
		URL:       absoluteURL(c, exportURL(art.Name)),
		QRURL:     absoluteURL(c, qrURL(art.Name)),
		LayoutID:  string(art.LayoutID),
		FrameID:   art.FrameID,
		Framed:    art.Framed,
		SizeBytes: art.SizeBytes,
		CreatedAt: art.CreatedAt,
		Warnings:  warningStrings(warnings),
	})
}

func (ws *WebServer) handleListExports(c *gin.Context) {
	pageStr := c.DefaultQuery("page", "1")
	limitStr := c.DefaultQuery("limit", "20")

	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid page parameter"})
		return
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid limit parameter"})
		return
	}

	total, err := ws.db.GetExportCount()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: fmt.Sprintf("Database error: %v", err)})
		return
	}
	exports, err := ws.db.GetExports(limit, (page-1)*limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: fmt.Sprintf("Database error: %v", err)})
		return
	}
	if exports == nil {
		exports = []store.Export{}
	}

	c.JSON(http.StatusOK, models.ExportListResponse{
		Exports: exports,
		Total:   total,
		Page:    page,
		Limit:   limit,
	})
}

func (ws *WebServer) exportPath(c *gin.Context) (string, string, bool) {
	name := c.Param("name")
	path, err := ws.exporter.Path(name)
	if err != nil {
		writeError(c, err)
		return "", "", false
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: fmt.Sprintf("Export not found: %s", name)})
			return "", "", false
		}
		writeError(c, err)
		return "", "", false
	}
	return name, path, true
}

func (ws *WebServer) handleDownloadExport(c *gin.Context) {
	name, path, ok := ws.exportPath(c)
	if !ok {
		return
	}
	c.FileAttachment(path, name)
}

func (ws *WebServer) handleExportQR(c *gin.Context) {
	name, _, ok := ws.exportPath(c)
	if !ok {
		return
	}

	size := defaultQRSize
	if s := c.Query("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 64 || n > 1024 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "size must be between 64 and 1024"})
			return
		}
		size = n
	}

	data, err := export.QRCode(absoluteURL(c, exportURL(name)), size)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", data)
}

func (ws *WebServer) handleDeleteExport(c *gin.Context) {
	name := c.Param("name")
	removeErr := ws.exporter.Remove(name)
	if errors.Is(removeErr, export.ErrInvalidName) {
		writeError(c, removeErr)
		return
	}
	if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
		writeError(c, removeErr)
		return
	}

	dbErr := ws.db.DeleteExport(name)
	if dbErr != nil && !errors.Is(dbErr, store.ErrNotFound) {
		writeError(c, dbErr)
		return
	}
	if removeErr != nil && dbErr != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: fmt.Sprintf("Export not found: %s", name)})
		return
	}
	c.Status(http.StatusNoContent)
}

func (ws *WebServer) handleGetSettings(c *gin.Context) {
	settings, err := ws.db.GetBoothSettings()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: fmt.Sprintf("Failed to get settings: %v", err)})
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (ws *WebServer) handleUpdateSettings(c *gin.Context) {
	var req store.BoothSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Invalid request body: %v", err)})
		return
	}

	if req.CountdownSeconds < 0 || req.CountdownSeconds > maxCountdown {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("countdown_seconds must be between 0 and %d", maxCountdown)})
		return
	}
	layoutID := catalog.LayoutID(req.DefaultLayout)
	if _, ok := catalog.LookupLayout(layoutID); !ok {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Unknown layout: %s", req.DefaultLayout)})
		return
	}
	if _, ok := catalog.LookupFrame(layoutID, req.DefaultFrame); !ok {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: fmt.Sprintf("Frame %s does not belong to layout %s", req.DefaultFrame, req.DefaultLayout),
		})
		return
	}

	if err := ws.db.UpsertBoothSettings(&req); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: fmt.Sprintf("Failed to update settings: %v", err)})
		return
	}
	c.JSON(http.StatusOK, req)
}

func (ws *WebServer) handleStatus(c *gin.Context) {
	resp := models.StatusResponse{
		SessionID:      ws.booth.Session().ID(),
		CameraHeld:     ws.booth.CameraHeld(),
		PreviewPending: ws.booth.previews.Pending(),
	}

	count, err := ws.db.GetExportCount()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: fmt.Sprintf("Database error: %v", err)})
		return
	}
	resp.ExportCount = count

	dir := ws.exporter.Dir()
	if _, err := os.Stat(dir); err != nil {
		dir = "."
	}
	usage, err := disk.UsageWithContext(c.Request.Context(), dir)
	if err != nil {
		slog.Warn("unable to read disk usage", "path", dir, "error", err)
	} else {
		resp.DiskFreeBytes = usage.Free
		resp.DiskUsedPercent = usage.UsedPercent
	}

	c.JSON(http.StatusOK, resp)
}
