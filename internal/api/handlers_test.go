package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cvbuilder/internal/ai"
	"cvbuilder/internal/analysis"
	"cvbuilder/internal/auth"
	"cvbuilder/internal/config"
	"cvbuilder/internal/coverletter"
	"cvbuilder/internal/cv"
	"cvbuilder/internal/database"
	"cvbuilder/internal/extract"
	"cvbuilder/internal/ratelimit"
)

type fakeStorage struct {
	mu       sync.Mutex
	objects  map[string][]byte
	deleted  []string
	prefixes []string
}

func newFakeStorage() *fakeStorage { return &fakeStorage{objects: map[string][]byte{}} }

func (s *fakeStorage) UploadFile(_ context.Context, name string, r io.Reader, size int64, _ string) (*minio.UploadInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = data
	return &minio.UploadInfo{Key: name, Size: size}, nil
}

func (s *fakeStorage) ReadObject(_ context.Context, key string, _ int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return data, nil
}

func (s *fakeStorage) GeneratePresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://minio.test/" + key, nil
}

func (s *fakeStorage) GeneratePresignedURLWithParams(_ context.Context, key string, _ time.Duration, params map[string]string) (string, error) {
	return "https://minio.test/" + key + "?disposition=" + params["response-content-disposition"], nil
}

func (s *fakeStorage) DeleteObject(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStorage) DeletePrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefixes = append(s.prefixes, prefix)
	return nil
}

type fakeQueue struct {
	tasks []*asynq.Task
	err   error
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: fmt.Sprintf("task-%d", len(q.tasks)), Type: task.Type()}, nil
}

type testEnv struct {
	router  *gin.Engine
	db      *gorm.DB
	auth    *auth.AuthService
	storage *fakeStorage
	queue   *fakeQueue
}

func newTestAuthService(t *testing.T) *auth.AuthService {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub})
	svc, err := auth.NewAuthService(privPEM, pubPEM, time.Minute, time.Hour)
	require.NoError(t, err)
	return svc
}

// newTestEnv 组装完整路由：sqlite 内存库、假对象存储与队列、mock 模式 AI，Redis 指向不可用地址。
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	redisClient := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	t.Cleanup(func() { _ = redisClient.Close() })

	cfg := &config.Config{
		API:    config.APIConfig{MaxCVsPerUser: 3},
		Auth:   config.AuthConfig{LoginRateLimitPerHour: 10, LoginLockThreshold: 5, LoginLockTTL: time.Minute},
		Upload: config.UploadConfig{MaxBytes: extract.DefaultMaxBytes, MaxPerDay: 30},
		AI:     config.AIConfig{CoverLettersPerDay: 5},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := newFakeStorage()
	queue := &fakeQueue{}
	authService := newTestAuthService(t)
	aiClient := ai.New(nil, 0, log)
	extractor := extract.NewExtractor(0, log)
	cvs := cv.NewService(db, cfg.API.MaxCVsPerUser)
	analyses := analysis.NewService(db, aiClient, extractor, store, 0, log)
	letters := coverletter.NewService(db, cvs, aiClient,
		&ratelimit.Daily{Counter: redisClient, Scope: "quota:cover_letters", Limit: cfg.AI.CoverLettersPerDay},
		log,
	)

	router := NewRouter(log)
	RegisterRoutes(router, Dependencies{
		Config:      cfg,
		DB:          db,
		Redis:       redisClient,
		Queue:       queue,
		Storage:     store,
		AuthService: authService,
		CVs:         cvs,
		Analyses:    analyses,
		Letters:     letters,
		Extractor:   extractor,
		Logger:      log,
	})

	return &testEnv{router: router, db: db, auth: authService, storage: store, queue: queue}
}

// user 创建用户并返回其访问令牌。
func (e *testEnv) user(t *testing.T, username string) (uint, string) {
	t.Helper()
	u := database.User{Username: username, PasswordHash: "x"}
	require.NoError(t, e.db.Create(&u).Error)
	pair, err := e.auth.GenerateTokenPair(u.ID, false)
	require.NoError(t, err)
	return u.ID, pair.AccessToken
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) upload(t *testing.T, token, filename string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type idBody struct {
	ID uint `json:"id"`
}

func minimalPDF(size int) []byte {
	head := "%PDF-1.4\n1 0 obj << /Type /Catalog >> endobj\n"
	if size <= len(head) {
		return []byte(head)
	}
	return append([]byte(head), bytes.Repeat([]byte("0"), size-len(head))...)
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
