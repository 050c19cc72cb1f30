package handlers

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/DanielTwine/smartshare/internal/logger"
	"github.com/DanielTwine/smartshare/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// FileHandler exposes the vault over HTTP and maps service verdicts onto
// status codes.
type FileHandler struct {
	vault *services.Vault
}

func NewFileHandler(vault *services.Vault) *FileHandler {
	return &FileHandler{vault: vault}
}

// Upload handles POST /files: multipart file plus optional password,
// max_downloads and expires_at fields.
func (h *FileHandler) Upload(c *fiber.Ctx) error {
	owner := c.Locals("owner").(string)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing file field"})
	}
	src, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "failed to open uploaded file"})
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "failed to read uploaded file"})
	}

	opts := services.UploadOptions{Password: c.FormValue("password")}
	if raw := c.FormValue("max_downloads"); raw != "" {
		limit, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "max_downloads must be an integer"})
		}
		opts.MaxDownloads = &limit
	}
	if raw := c.FormValue("expires_at"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "expires_at must be RFC 3339"})
		}
		opts.ExpiresAt = &at
	}

	file, err := h.vault.Upload(c.Context(), data, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), owner, opts)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "File uploaded successfully",
		"file":    file,
	})
}

// List handles GET /files: the calling owner's shares in insertion order.
func (h *FileHandler) List(c *fiber.Ctx) error {
	owner := c.Locals("owner").(string)

	files, err := h.vault.List(c.Context(), owner)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"files": files})
}

type metaResponse struct {
	ID                string     `json:"id"`
	Filename          string     `json:"filename"`
	SizeBytes         int64      `json:"size_bytes"`
	ContentType       string     `json:"content_type"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	MaxDownloads      *int64     `json:"max_downloads,omitempty"`
	DownloadCount     int64      `json:"download_count"`
	PasswordProtected bool       `json:"password_protected"`
	Active            bool       `json:"active"`
}

// Meta handles GET /files/:id/meta: share metadata without the bytes. An
// exhausted share still answers here so the UI can show "limit reached".
func (h *FileHandler) Meta(c *fiber.Ctx) error {
	file, err := h.vault.Metadata(c.Context(), c.Params("id"), c.Query("password"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(metaResponse{
		ID:                file.ID,
		Filename:          file.Filename,
		SizeBytes:         file.SizeBytes,
		ContentType:       file.ContentType,
		ExpiresAt:         file.ExpiresAt,
		MaxDownloads:      file.MaxDownloads,
		DownloadCount:     file.DownloadCount,
		PasswordProtected: file.PasswordProtected,
		Active:            file.Active,
	})
}

// Download handles GET /files/:id: streams the bytes once a download slot is
// granted. fasthttp closes the body stream on every exit path, including a
// client disconnect mid-stream.
func (h *FileHandler) Download(c *fiber.Ctx) error {
	file, reader, err := h.vault.Download(c.Context(), c.Params("id"), c.Query("password"))
	if err != nil {
		return errorResponse(c, err)
	}

	c.Set(fiber.HeaderContentType, file.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", file.Filename))
	return c.SendStream(reader, streamLength(file.SizeBytes))
}

// streamLength narrows a blob size to the int fiber expects. Sizes beyond the
// platform's int range (files over 2 GiB on 32-bit) stream without a declared
// length instead of truncating.
func streamLength(size int64) int {
	if size > math.MaxInt {
		return -1
	}
	return int(size)
}

type updateRequest struct {
	Active       *bool      `json:"active"`
	Password     *string    `json:"password"`
	MaxDownloads *int64     `json:"max_downloads"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

// Update handles PUT /files/:id: owner-only policy changes, including the
// revoke/re-enable flag.
func (h *FileHandler) Update(c *fiber.Ctx) error {
	owner := c.Locals("owner").(string)

	var req updateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	file, err := h.vault.UpdatePolicy(c.Context(), c.Params("id"), owner, services.PolicyUpdate{
		Active:       req.Active,
		Password:     req.Password,
		MaxDownloads: req.MaxDownloads,
		ExpiresAt:    req.ExpiresAt,
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(file)
}

// Delete handles DELETE /files/:id: owner-only permanent deletion of record
// and bytes.
func (h *FileHandler) Delete(c *fiber.Ctx) error {
	owner := c.Locals("owner").(string)

	if err := h.vault.Destroy(c.Context(), c.Params("id"), owner); err != nil {
		return errorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// errorResponse maps service errors onto HTTP statuses. Password-required
// and password-invalid share one generic 401 body so responses cannot be
// used as a password oracle; the distinction is only logged server-side.
func errorResponse(c *fiber.Ctx, err error) error {
	var storageErr *services.StorageError

	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrPasswordRequired), errors.Is(err, services.ErrPasswordInvalid):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "password required or incorrect"})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not allowed"})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "file not found"})
	case errors.Is(err, services.ErrGone):
		return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": "file expired"})
	case errors.Is(err, services.ErrExhausted):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "download limit reached"})
	case errors.As(err, &storageErr):
		logger.Error("storage failure", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "storage unavailable, retry later"})
	default:
		logger.Error("unexpected error", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}
