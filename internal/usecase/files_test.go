package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinChat/internal/domain/models"
	domrepo "FinChat/internal/domain/repository"
	"FinChat/internal/repository"
	"FinChat/internal/services/documents"
	"FinChat/pkg/config"
	"FinChat/pkg/logger"
	"FinChat/pkg/metrics"
	"FinChat/pkg/queue"
)

type fileEnv struct {
	dir     string
	store   *repository.MemoryFileStore
	backend *fakeBackend
	job     *DocumentParseJob
}

func newFiles(t *testing.T) (*FileService, *fileEnv) {
	t.Helper()
	env := &fileEnv{
		dir:     t.TempDir(),
		store:   repository.NewMemoryFileStore(),
		backend: &fakeBackend{},
	}
	env.job = NewDocumentParseJob(logger.NewNop(), env.store, documents.NewExtractor(), env.backend, metrics.Nop{}, env.dir)

	svc := NewFileService(logger.NewNop(), env.store, queue.NewInline(env.job), config.UploadsConfig{
		Dir:          env.dir,
		MaxBytes:     16,
		AllowedTypes: []string{"text/markdown", "image/png", "text/plain"},
	})
	tick := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}
	return svc, env
}

func userMessage(t *testing.T, err error) string {
	t.Helper()
	var fe *FileError
	require.True(t, errors.As(err, &fe), "want FileError, got %v", err)
	return fe.Message
}

func TestFileService_ManualCreate(t *testing.T) {
	svc, env := newFiles(t)

	rec, err := svc.ManualCreate(t.Context(), "u1", "notes", "# Notes")
	require.NoError(t, err)
	assert.Equal(t, "notes.md", rec.Filename)
	assert.False(t, rec.Parsed)

	data, err := os.ReadFile(filepath.Join(env.dir, "u1", "notes.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Notes", string(data))

	_, err = svc.ManualCreate(t.Context(), "u1", "notes.MD", "again")
	assert.NoError(t, err, "suffix match is case-insensitive so this is a new file")

	_, err = svc.ManualCreate(t.Context(), "u1", "notes", "again")
	assert.ErrorIs(t, err, domrepo.ErrFileExists)
	assert.Equal(t, "檔案「notes.md」已存在，請勿重複上傳", userMessage(t, err))

	_, err = svc.ManualCreate(t.Context(), "u1", "empty", "  ")
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestFileService_UploadChecks(t *testing.T) {
	svc, _ := newFiles(t)

	_, err := svc.Upload(t.Context(), "u1", "big.txt", "text/plain", make([]byte, 17))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = svc.Upload(t.Context(), "u1", "doc.exe", "application/x-msdownload", []byte("MZ"))
	assert.ErrorIs(t, err, ErrFileType)

	_, err = svc.Upload(t.Context(), "u1", "../escape.txt", "text/plain", []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidFilename)

	_, err = svc.Upload(t.Context(), "u1", "none.txt", "text/plain", nil)
	assert.ErrorIs(t, err, ErrEmptyFile)

	rec, err := svc.Upload(t.Context(), "u1", "ok.txt", "text/plain; charset=utf-8", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "ok.txt", rec.Filename)
}

func TestFileService_ListAndDelete(t *testing.T) {
	svc, env := newFiles(t)
	_, err := svc.ManualCreate(t.Context(), "u1", "a", "a")
	require.NoError(t, err)
	_, err = svc.ManualCreate(t.Context(), "u1", "b", "b")
	require.NoError(t, err)

	files, err := svc.List(t.Context(), "u1")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "b.md", files[0].Filename, "newest first")

	require.NoError(t, svc.Delete(t.Context(), "u1", "a.md"))
	_, err = os.Stat(filepath.Join(env.dir, "u1", "a.md"))
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, svc.Delete(t.Context(), "u1", "a.md"), domrepo.ErrFileNotFound)
}

func TestFileService_RequestParseLocal(t *testing.T) {
	svc, env := newFiles(t)
	_, err := svc.ManualCreate(t.Context(), "u1", "report", "# Q1\n\nRevenue up")
	require.NoError(t, err)

	require.NoError(t, svc.RequestParse(t.Context(), "u1", "report.md"))

	rec, err := env.store.Get(t.Context(), "u1", "report.md")
	require.NoError(t, err)
	assert.True(t, rec.Parsed)
	require.NotNil(t, rec.ParseResult)
	assert.Contains(t, rec.ParseResult.Text, "Q1")
	assert.Contains(t, rec.ParseResult.Text, "Revenue up")
	assert.Empty(t, env.backend.parsed)
}

func TestFileService_RequestParseFallsBackToBackend(t *testing.T) {
	svc, env := newFiles(t)
	_, err := svc.Upload(t.Context(), "u1", "chart.png", "image/png", []byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)

	require.NoError(t, svc.RequestParse(t.Context(), "u1", "chart.png"))

	rec, err := env.store.Get(t.Context(), "u1", "chart.png")
	require.NoError(t, err)
	assert.Equal(t, "remote text", rec.ParseResult.Text)
	assert.True(t, filepath.IsAbs(env.backend.parsed))
	assert.Equal(t, "chart.png", filepath.Base(env.backend.parsed))
}

func TestFileService_RequestParseErrors(t *testing.T) {
	svc, env := newFiles(t)
	assert.ErrorIs(t, svc.RequestParse(t.Context(), "u1", "missing.md"), domrepo.ErrFileNotFound)

	_, err := svc.Upload(t.Context(), "u1", "scan.png", "image/png", []byte("png"))
	require.NoError(t, err)
	env.backend.parseFn = func(string) (string, error) { return "", errors.New("backend down") }

	assert.ErrorContains(t, svc.RequestParse(t.Context(), "u1", "scan.png"), "backend down")
	rec, err := env.store.Get(t.Context(), "u1", "scan.png")
	require.NoError(t, err)
	assert.False(t, rec.Parsed)
}

func TestDocumentParseJob_BadPayload(t *testing.T) {
	_, env := newFiles(t)
	assert.Error(t, env.job.Handle(context.Background(), nil))
	assert.Equal(t, models.JobParseDocument, env.job.Type())
}

func TestFileService_ToolTexts(t *testing.T) {
	svc, env := newFiles(t)
	ctx := t.Context()

	text, err := svc.ReadFilesText(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, "使用者尚未上傳任何檔案。請提醒使用者前往「檔案管理中心」上傳並完成解析後再試一次。", text)

	_, err = svc.ManualCreate(ctx, "u1", "alpha", "alpha body")
	require.NoError(t, err)
	_, err = svc.ManualCreate(ctx, "u1", "beta", "beta body")
	require.NoError(t, err)
	require.NoError(t, env.store.UpdateParseResult(ctx, "u1", "alpha.md", models.ParseResult{Text: " alpha body "}))

	text, err = svc.ListFilesText(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "### 使用者目前共上傳 2 份檔案：\n- **beta.md** ｜ 解析狀態：未解析\n- **alpha.md** ｜ 解析狀態：已解析", text)

	text, err = svc.ReadFilesText(ctx, "u1", []string{"ALPHA"})
	require.NoError(t, err)
	assert.Equal(t, "### alpha.md\n```txt\nalpha body\n```", text)

	text, err = svc.ReadFilesText(ctx, "u1", []string{"gamma"})
	require.NoError(t, err)
	assert.Equal(t, "找不到符合關鍵字的檔案（輸入的: gamma）\n\n目前上傳檔案如下：\n- beta.md（已解析：否）\n- alpha.md（已解析：是）", text)

	text, err = svc.ReadFilesText(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, "以下檔案尚未解析，請先前往「檔案管理中心」完成解析後再試一次：\n\n- beta.md", text)
}
