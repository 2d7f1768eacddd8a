// Package storage signs object storage URLs on behalf of users and enforces
// which bucket paths each user may touch.
package storage

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"collab-backend/internal/apperr"
)

// 논리 버킷
const (
	BucketAvatars           = "avatars"
	BucketOrganizationFiles = "organization-files"
	BucketChatFiles         = "chat-files"
)

const (
	DefaultURLTTL = 60 * time.Second
	MaxURLTTL     = 24 * time.Hour
)

// Entry 목록 항목
type Entry struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified,omitempty"`
	IsFolder     bool      `json:"is_folder"`
}

// Signer 오브젝트 스토리지 서명 계약
type Signer interface {
	SignedUploadURL(ctx context.Context, bucket, key string) (string, error)
	SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
	List(ctx context.Context, bucket, prefix string) ([]Entry, error)
}

// Owner 요청자 (경로 권한 판단 기준)
type Owner struct {
	UserID         uuid.UUID
	OrganizationID *uuid.UUID
}

// folder 버킷별 요청자 전용 최상위 폴더
func folder(owner Owner, bucket string) (string, error) {
	switch bucket {
	case BucketAvatars:
		return owner.UserID.String() + "/", nil
	case BucketOrganizationFiles, BucketChatFiles:
		if owner.OrganizationID == nil {
			return "", apperr.Forbidden("user does not belong to an organization").WithReason("no_organization")
		}
		return owner.OrganizationID.String() + "/", nil
	default:
		return "", apperr.BadRequest("unknown bucket %q", bucket)
	}
}

func cleanPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", apperr.BadRequest("path is required")
	}
	if strings.HasPrefix(p, "/") || strings.Contains(p, "..") || strings.Contains(p, "\\") {
		return "", apperr.BadRequest("invalid path")
	}
	return p, nil
}

// CheckPath 요청자가 bucket/path 에 접근 가능한지 확인
func CheckPath(owner Owner, bucket, p string) (string, error) {
	root, err := folder(owner, bucket)
	if err != nil {
		return "", err
	}
	p, err = cleanPath(p)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(p, root) {
		if bucket == BucketAvatars {
			return "", apperr.Forbidden("can only access your own avatar folder").WithReason("wrong_owner")
		}
		return "", apperr.Forbidden("can only access your organization's files").WithReason("wrong_organization")
	}
	return p, nil
}

// Service 서명 + 권한 확인
type Service struct {
	signer Signer
}

func NewService(signer Signer) *Service {
	return &Service{signer: signer}
}

// UploadURL 업로드 URL 발급
func (s *Service) UploadURL(ctx context.Context, owner Owner, bucket, p string) (string, string, error) {
	key, err := CheckPath(owner, bucket, p)
	if err != nil {
		return "", "", err
	}
	url, err := s.signer.SignedUploadURL(ctx, bucket, key)
	if err != nil {
		return "", "", apperr.Internal(err, "failed to create upload url")
	}
	return url, key, nil
}

// DownloadURL 다운로드 URL 발급 (ttl 0 이면 기본 60초)
func (s *Service) DownloadURL(ctx context.Context, owner Owner, bucket, p string, ttl time.Duration) (string, error) {
	if ttl < 0 || ttl > MaxURLTTL {
		return "", apperr.BadRequest("expires_in must be between 1 and %d seconds", int(MaxURLTTL.Seconds()))
	}
	if ttl == 0 {
		ttl = DefaultURLTTL
	}
	key, err := CheckPath(owner, bucket, p)
	if err != nil {
		return "", err
	}
	url, err := s.signer.SignedURL(ctx, bucket, key, ttl)
	if err != nil {
		return "", apperr.Internal(err, "failed to create signed url")
	}
	return url, nil
}

// List 요청자 폴더 아래 항목 조회 (prefix 가 비어 있으면 요청자 폴더)
func (s *Service) List(ctx context.Context, owner Owner, bucket, prefix string) ([]Entry, error) {
	root, err := folder(owner, bucket)
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = root
	} else if prefix, err = CheckPath(owner, bucket, prefix); err != nil {
		return nil, err
	}
	entries, err := s.signer.List(ctx, bucket, prefix)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list files")
	}
	return entries, nil
}
