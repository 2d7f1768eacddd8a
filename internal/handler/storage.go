package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"collab-backend/internal/apperr"
	"collab-backend/internal/auth"
	"collab-backend/internal/storage"
)

// StorageHandler 스토리지 서명 URL 핸들러
type StorageHandler struct {
	storage *storage.Service
}

// NewStorageHandler StorageHandler 생성 (svc 가 nil 이면 503 응답)
func NewStorageHandler(svc *storage.Service) *StorageHandler {
	return &StorageHandler{storage: svc}
}

// UploadURLRequest 업로드 URL 요청
type UploadURLRequest struct {
	Bucket string `json:"bucket"`
	Path   string `json:"path"`
}

// SignedURLRequest 다운로드 URL 요청
type SignedURLRequest struct {
	Bucket    string `json:"bucket"`
	Path      string `json:"path"`
	ExpiresIn int    `json:"expires_in"` // 초 단위
}

func (h *StorageHandler) owner(c *fiber.Ctx) (storage.Owner, error) {
	if h.storage == nil {
		return storage.Owner{}, fiber.NewError(fiber.StatusServiceUnavailable, "storage is not configured")
	}
	user, err := auth.GetUserFromContext(c)
	if err != nil {
		return storage.Owner{}, err
	}
	return storage.Owner{UserID: user.ID, OrganizationID: user.OrganizationID}, nil
}

// CreateUploadURL 업로드용 서명 URL 발급
func (h *StorageHandler) CreateUploadURL(c *fiber.Ctx) error {
	owner, err := h.owner(c)
	if err != nil {
		return err
	}

	var req UploadURLRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	url, key, err := h.storage.UploadURL(c.UserContext(), owner, req.Bucket, req.Path)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"upload_url": url,
		"path":       key,
	})
}

// CreateSignedURL 다운로드용 서명 URL 발급
func (h *StorageHandler) CreateSignedURL(c *fiber.Ctx) error {
	owner, err := h.owner(c)
	if err != nil {
		return err
	}

	var req SignedURLRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.ExpiresIn < 0 {
		return apperr.BadRequest("expires_in must be positive")
	}

	ttl := time.Duration(req.ExpiresIn) * time.Second
	url, err := h.storage.DownloadURL(c.UserContext(), owner, req.Bucket, req.Path, ttl)
	if err != nil {
		return err
	}

	expiresIn := req.ExpiresIn
	if expiresIn == 0 {
		expiresIn = int(storage.DefaultURLTTL.Seconds())
	}
	return c.JSON(fiber.Map{
		"signed_url": url,
		"expires_in": expiresIn,
	})
}

// ListFiles 버킷 내 본인/조직 폴더 조회
func (h *StorageHandler) ListFiles(c *fiber.Ctx) error {
	owner, err := h.owner(c)
	if err != nil {
		return err
	}

	entries, err := h.storage.List(c.UserContext(), owner, c.Params("bucket"), c.Query("prefix"))
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []storage.Entry{}
	}

	return c.JSON(fiber.Map{
		"files": entries,
	})
}
