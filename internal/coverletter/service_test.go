package coverletter

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cvbuilder/internal/ai"
	"cvbuilder/internal/cv"
	"cvbuilder/internal/database"
	"cvbuilder/internal/ratelimit"
)

type countingCompleter struct {
	calls int
	reply string
}

func (c *countingCompleter) Complete(_ context.Context, _ ai.CompletionRequest) (string, error) {
	c.calls++
	return c.reply, nil
}

type memCounter struct{ counts map[string]int64 }

func (m *memCounter) Incr(_ context.Context, key string) *redis.IntCmd {
	m.counts[key]++
	return redis.NewIntResult(m.counts[key], nil)
}

func (m *memCounter) Expire(_ context.Context, _ string, _ time.Duration) *redis.BoolCmd {
	return redis.NewBoolResult(true, nil)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.AllModels()...))
	return db
}

func newService(db *gorm.DB, completer ai.Completer, quota *ratelimit.Daily) *Service {
	return NewService(db, cv.NewService(db, 0), ai.New(completer, 0, nil), quota, nil)
}

func seedCV(t *testing.T, db *gorm.DB) database.CV {
	t.Helper()
	record := database.CV{UserID: 1, Title: "Backend", FullName: "Ada", Email: "ada@example.com", Summary: "Go developer"}
	require.NoError(t, db.Create(&record).Error)
	require.NoError(t, db.Create(&database.Skill{SectionBase: database.SectionBase{CVID: record.ID}, Name: "Go"}).Error)
	return record
}

func TestGenerate_MockModeFromCV(t *testing.T) {
	db := newTestDB(t)
	svc := newService(db, nil, nil)
	record := seedCV(t, db)

	letter, err := svc.Generate(context.Background(), 1, GenerateInput{
		CVID:           &record.ID,
		JobTitle:       "Backend Engineer",
		CompanyName:    "Acme",
		JobDescription: "Build Go services",
	})
	require.NoError(t, err)
	assert.NotZero(t, letter.ID)
	assert.Contains(t, letter.GeneratedLetter, "Backend Engineer")
	assert.Equal(t, string(ai.SourceMock), letter.Source)
	assert.Equal(t, database.ToneProfessional, letter.Tone)
	assert.Equal(t, "standard", letter.TemplateType)
	assert.Contains(t, letter.CVSnapshot, "Skills: Go")
	require.NotNil(t, letter.CVID)
	assert.Equal(t, record.ID, *letter.CVID)
}

func TestGenerate_BlankTitleMakesNoCalls(t *testing.T) {
	db := newTestDB(t)
	completer := &countingCompleter{reply: "letter"}
	svc := newService(db, completer, nil)

	_, err := svc.Generate(context.Background(), 1, GenerateInput{CVText: "Go developer", JobTitle: "  ", JobDescription: "desc"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ai.ErrValidation)
	assert.True(t, IsValidationError(err))
	assert.Zero(t, completer.calls)

	var count int64
	require.NoError(t, db.Model(&database.AICoverLetter{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGenerate_RejectsUnknownToneAndMissingSource(t *testing.T) {
	svc := newService(newTestDB(t), nil, nil)
	ctx := context.Background()

	_, err := svc.Generate(ctx, 1, GenerateInput{CVText: "x", JobTitle: "Dev", JobDescription: "d", Tone: "sarcastic"})
	assert.ErrorIs(t, err, ErrInvalidTone)

	_, err = svc.Generate(ctx, 1, GenerateInput{JobTitle: "Dev", JobDescription: "d"})
	assert.ErrorIs(t, err, ErrNoSource)

	missing := uint(99)
	_, err = svc.Generate(ctx, 1, GenerateInput{CVID: &missing, JobTitle: "Dev", JobDescription: "d"})
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestGenerate_LiveCompleter(t *testing.T) {
	db := newTestDB(t)
	completer := &countingCompleter{reply: "Dear Hiring Manager,\nHire me."}
	svc := newService(db, completer, nil)

	letter, err := svc.Generate(context.Background(), 1, GenerateInput{
		CVText:         "Go developer with 5 years experience",
		JobTitle:       "Backend Engineer",
		JobDescription: "Build Go services",
	})
	require.NoError(t, err)
	// 要点抽取、职位匹配、生成各一次请求。
	assert.Equal(t, 3, completer.calls)
	assert.Equal(t, "Dear Hiring Manager,\nHire me.", letter.GeneratedLetter)
	assert.Equal(t, string(ai.SourceAI), letter.Source)
}

func TestGenerate_DailyQuota(t *testing.T) {
	db := newTestDB(t)
	quota := &ratelimit.Daily{Counter: &memCounter{counts: map[string]int64{}}, Scope: "cover_letters", Limit: 1}
	svc := newService(db, nil, quota)
	in := GenerateInput{CVText: "Go developer", JobTitle: "Dev", JobDescription: "Go"}

	_, err := svc.Generate(context.Background(), 1, in)
	require.NoError(t, err)
	_, err = svc.Generate(context.Background(), 1, in)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestRegenerate_OverwritesSameRow(t *testing.T) {
	db := newTestDB(t)
	svc := newService(db, nil, nil)
	ctx := context.Background()

	first, err := svc.Generate(ctx, 1, GenerateInput{CVText: "Go developer", JobTitle: "Dev", JobDescription: "Go"})
	require.NoError(t, err)

	again, err := svc.Regenerate(ctx, 1, first.ID, database.ToneFriendly)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	var stored database.AICoverLetter
	require.NoError(t, db.First(&stored, first.ID).Error)
	assert.Equal(t, database.ToneFriendly, stored.Tone)
	assert.Contains(t, stored.GeneratedLetter, "Dev")

	_, err = svc.Regenerate(ctx, 2, first.ID, "")
	assert.ErrorIs(t, err, ErrNotFound)

	var count int64
	require.NoError(t, db.Model(&database.AICoverLetter{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestUpdateAndDelete(t *testing.T) {
	db := newTestDB(t)
	svc := newService(db, nil, nil)
	ctx := context.Background()

	letter, err := svc.Generate(ctx, 1, GenerateInput{CVText: "Go developer", JobTitle: "Dev", JobDescription: "Go"})
	require.NoError(t, err)

	edited := "Edited body"
	blank := " "
	require.NoError(t, svc.Update(ctx, letter, Patch{GeneratedLetter: &edited, TemplateType: "modern"}))
	assert.Error(t, svc.Update(ctx, letter, Patch{JobTitle: &blank}))

	stored, err := svc.Get(ctx, 1, letter.ID)
	require.NoError(t, err)
	assert.Equal(t, "Edited body", stored.GeneratedLetter)
	assert.Equal(t, "modern", stored.TemplateType)
	assert.Equal(t, "Dev", stored.JobTitle)

	require.NoError(t, svc.Delete(ctx, 1, letter.ID))
	assert.ErrorIs(t, svc.Delete(ctx, 1, letter.ID), ErrNotFound)
}
