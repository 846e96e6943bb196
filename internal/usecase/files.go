package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"FinChat/internal/domain/models"
	domrepo "FinChat/internal/domain/repository"
	"FinChat/pkg/config"
	"FinChat/pkg/logger"
	"FinChat/pkg/queue"
)

var (
	ErrInvalidFilename = errors.New("invalid filename")
	ErrFileTooLarge    = errors.New("file too large")
	ErrFileType        = errors.New("file type not allowed")
	ErrEmptyFile       = errors.New("empty file")
)

// FileError pairs a sentinel with the sentence shown to the user.
type FileError struct {
	Err     error
	Message string
}

func (e *FileError) Error() string { return e.Message }
func (e *FileError) Unwrap() error { return e.Err }

func fileError(err error, format string, a ...interface{}) error {
	return &FileError{Err: err, Message: fmt.Sprintf(format, a...)}
}

// FileService manages the documents a user keeps for the assistant to read.
// Files live under <dir>/<user>/<filename>; records live in the FileStore.
type FileService struct {
	lgr      *logger.Logger
	store    domrepo.FileStore
	jobs     queue.Enqueuer
	dir      string
	maxBytes int64
	allowed  map[string]bool
	now      func() time.Time
}

func NewFileService(lgr *logger.Logger, store domrepo.FileStore, jobs queue.Enqueuer, cfg config.UploadsConfig) *FileService {
	allowed := make(map[string]bool, len(cfg.AllowedTypes))
	for _, t := range cfg.AllowedTypes {
		allowed[strings.ToLower(t)] = true
	}
	return &FileService{
		lgr:      lgr.With(logger.String("component", "files")),
		store:    store,
		jobs:     jobs,
		dir:      cfg.Dir,
		maxBytes: cfg.MaxBytes,
		allowed:  allowed,
		now:      time.Now,
	}
}

// ManualCreate stores markdown typed in the files page. ".md" is appended when missing.
func (s *FileService) ManualCreate(ctx context.Context, userID, filename, content string) (*models.FileRecord, error) {
	filename = strings.TrimSpace(filename)
	if !strings.HasSuffix(strings.ToLower(filename), ".md") {
		filename += ".md"
	}
	if strings.TrimSpace(content) == "" {
		return nil, fileError(ErrEmptyFile, "請提供正確的 filename 與 content")
	}
	return s.save(ctx, userID, filename, []byte(content))
}

// Upload stores a file sent from the browser after checking size and content type.
func (s *FileService) Upload(ctx context.Context, userID, filename, contentType string, data []byte) (*models.FileRecord, error) {
	if len(data) == 0 {
		return nil, fileError(ErrEmptyFile, "No file uploaded")
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fileError(ErrFileTooLarge, "File size should be less than %dMB", s.maxBytes>>20)
	}
	if !s.allowed[normalizeType(contentType)] {
		return nil, fileError(ErrFileType, "File type %q is not allowed", contentType)
	}
	return s.save(ctx, userID, strings.TrimSpace(filename), data)
}

func (s *FileService) save(ctx context.Context, userID, filename string, data []byte) (*models.FileRecord, error) {
	path, err := s.Path(userID, filename)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err == nil {
		return nil, duplicate(filename)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	rec := &models.FileRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Filename:  filename,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		if errors.Is(err, domrepo.ErrFileExists) {
			return nil, duplicate(filename)
		}
		return nil, fmt.Errorf("insert file record: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		if derr := s.store.Delete(ctx, userID, filename); derr != nil {
			s.lgr.Error("roll back file record", logger.String("file", filename), logger.Error(derr))
		}
		return nil, fmt.Errorf("write upload: %w", err)
	}

	s.lgr.Info("file stored",
		logger.String("user", userID),
		logger.String("file", filename),
		logger.Int("bytes", len(data)))
	return rec, nil
}

func (s *FileService) List(ctx context.Context, userID string) ([]*models.FileRecord, error) {
	return s.store.ListByUser(ctx, userID)
}

// Delete removes the record and the stored file. A file already gone from disk is not an error.
func (s *FileService) Delete(ctx context.Context, userID, filename string) error {
	path, err := s.Path(userID, filename)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, userID, filename); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}

// RequestParse schedules text extraction for a stored file.
func (s *FileService) RequestParse(ctx context.Context, userID, filename string) error {
	if _, err := s.Path(userID, filename); err != nil {
		return err
	}
	if _, err := s.store.Get(ctx, userID, filename); err != nil {
		return err
	}
	return s.jobs.Enqueue(ctx, models.JobParseDocument, models.ParseDocumentJob{UserID: userID, Filename: filename})
}

// Path is where a user's file is kept on disk.
func (s *FileService) Path(userID, filename string) (string, error) {
	return uploadPath(s.dir, userID, filename)
}

// ListFilesText renders the listUserUploadedFiles tool result.
func (s *FileService) ListFilesText(ctx context.Context, userID string) (string, error) {
	files, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "使用者尚未上傳任何檔案。請前往「檔案管理中心」上傳檔案。", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "### 使用者目前共上傳 %d 份檔案：", len(files))
	for _, f := range files {
		status := "未解析"
		if f.Parsed {
			status = "已解析"
		}
		fmt.Fprintf(&b, "\n- **%s** ｜ 解析狀態：%s", f.Filename, status)
	}
	return b.String(), nil
}

// ReadFilesText renders the readUserFiles tool result. Filenames match by case-insensitive
// substring; none means every file.
func (s *FileService) ReadFilesText(ctx context.Context, userID string, filenames []string) (string, error) {
	files, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "使用者尚未上傳任何檔案。請提醒使用者前往「檔案管理中心」上傳並完成解析後再試一次。", nil
	}

	matched := files
	if len(filenames) > 0 {
		matched = matchFiles(files, filenames)
		if len(matched) == 0 {
			lines := make([]string, 0, len(files))
			for _, f := range files {
				parsed := "否"
				if f.Parsed {
					parsed = "是"
				}
				lines = append(lines, fmt.Sprintf("- %s（已解析：%s）", f.Filename, parsed))
			}
			return fmt.Sprintf("找不到符合關鍵字的檔案（輸入的: %s）\n\n目前上傳檔案如下：\n%s",
				strings.Join(filenames, ", "), strings.Join(lines, "\n")), nil
		}
	}

	var unparsed []string
	for _, f := range matched {
		if !f.Parsed {
			unparsed = append(unparsed, "- "+f.Filename)
		}
	}
	if len(unparsed) > 0 {
		return "以下檔案尚未解析，請先前往「檔案管理中心」完成解析後再試一次：\n\n" + strings.Join(unparsed, "\n"), nil
	}

	blocks := make([]string, 0, len(matched))
	for _, f := range matched {
		if f.ParseResult == nil {
			continue
		}
		text := strings.TrimSpace(f.ParseResult.Text)
		if text == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("### %s\n```txt\n%s\n```", f.Filename, text))
	}
	return strings.Join(blocks, "\n\n"), nil
}

func matchFiles(files []*models.FileRecord, queries []string) []*models.FileRecord {
	var out []*models.FileRecord
	for _, f := range files {
		name := strings.ToLower(f.Filename)
		for _, q := range queries {
			if strings.Contains(name, strings.ToLower(q)) {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

func duplicate(filename string) error {
	return fileError(domrepo.ErrFileExists, "檔案「%s」已存在，請勿重複上傳", filename)
}

// normalizeType drops parameters such as "; charset=utf-8".
func normalizeType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

func uploadPath(dir, userID, filename string) (string, error) {
	for _, part := range []string{userID, filename} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return "", fileError(ErrInvalidFilename, "檔名不合法")
		}
	}
	return filepath.Join(dir, userID, filename), nil
}
