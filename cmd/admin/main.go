package main

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"cvbuilder/internal/auth"
	"cvbuilder/internal/config"
	"cvbuilder/internal/database"
	"cvbuilder/internal/render"
)

func main() {
	var (
		username      = flag.String("username", "", "初始管理员用户名（为空时只迁移并写入内置模板）")
		dbHost        = flag.String("db-host", "", "数据库 Host（可选，默认读 DATABASE_HOST）")
		dbPort        = flag.Int("db-port", 0, "数据库 Port（可选，默认读 DATABASE_PORT）")
		skipTemplates = flag.Bool("skip-templates", false, "不写入内置模板")
	)
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if h := strings.TrimSpace(*dbHost); h != "" {
		cfg.Database.Host = h
	}
	if *dbPort > 0 {
		cfg.Database.Port = *dbPort
	}

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	if !*skipTemplates {
		created, err := seedTemplates(db)
		if err != nil {
			log.Fatalf("seed templates: %v", err)
		}
		fmt.Printf("内置模板已就绪（新增 %d 个）\n", created)
	}

	u := strings.TrimSpace(*username)
	if u == "" {
		return
	}

	password, err := createAdmin(db, u)
	if err != nil {
		log.Fatalf("create admin: %v", err)
	}
	fmt.Printf("已创建初始管理员账号（首次登录需强制改密）：\n")
	fmt.Printf("用户名: %s\n", u)
	fmt.Printf("初始密码: %s\n", password)
	fmt.Printf("提示：请立即登录并修改密码（该密码仅显示一次）。\n")
}

// createAdmin 创建带强制改密标记的账号，返回随机生成的初始密码。
func createAdmin(db *gorm.DB, username string) (string, error) {
	var existing database.User
	switch err := db.Where("username = ?", username).First(&existing).Error; {
	case err == nil:
		return "", fmt.Errorf("user %q already exists", username)
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return "", fmt.Errorf("query user: %w", err)
	}

	password, err := generateRandomPassword(24)
	if err != nil {
		return "", err
	}
	hashed, err := auth.HashPassword(password)
	if err != nil {
		return "", err
	}

	user := database.User{
		Username:           username,
		PasswordHash:       hashed,
		MustChangePassword: true,
	}
	if err := db.Create(&user).Error; err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}
	return password, nil
}

var builtinTemplates = []database.Template{
	{
		Name:        "Classic",
		Description: "单栏经典版式，适合大多数岗位",
		Content:     render.DefaultCVLayout,
		Style:       "professional",
		Type:        database.TemplateTypeCV,
		IsDefault:   true,
	},
	{
		Name:        "Standard Letter",
		Description: "标准求职信版式",
		Content:     render.DefaultLetterLayout,
		Style:       "professional",
		Type:        database.TemplateTypeCoverLetter,
		IsDefault:   true,
	},
}

// seedTemplates 按名称幂等写入系统模板，返回新增数量。
func seedTemplates(db *gorm.DB) (int, error) {
	created := 0
	for _, tpl := range builtinTemplates {
		var count int64
		if err := db.Model(&database.Template{}).
			Where("name = ? AND type = ? AND created_by_id IS NULL", tpl.Name, tpl.Type).
			Count(&count).Error; err != nil {
			return created, fmt.Errorf("count template %q: %w", tpl.Name, err)
		}
		if count > 0 {
			continue
		}
		row := tpl
		if err := db.Create(&row).Error; err != nil {
			return created, fmt.Errorf("create template %q: %w", tpl.Name, err)
		}
		created++
	}
	return created, nil
}

func generateRandomPassword(bytesLen int) (string, error) {
	if bytesLen <= 0 {
		bytesLen = 24
	}
	buf := make([]byte, bytesLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
