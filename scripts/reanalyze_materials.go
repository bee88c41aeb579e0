// 手动重新分析学习资料的主题
//
// 正常情况下上传后会自动排队分析；此脚本用于模型或提示词调整后批量重跑，
// 或补跑失败、为空的资料。分析在当前进程内同步执行，不经过任务队列。
//
// 用法:
//
//	go run scripts/reanalyze_materials.go -material 12
//	go run scripts/reanalyze_materials.go -status failed,empty
//	go run scripts/reanalyze_materials.go -all

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"study_assistant_backend/internal/config"
	"study_assistant_backend/internal/model"
	"study_assistant_backend/internal/repository"
	"study_assistant_backend/internal/service"
	"study_assistant_backend/pkg/database"
	"study_assistant_backend/pkg/logger"

	"gopkg.in/yaml.v3"
)

// scriptConfig 只解析脚本需要的配置段
type scriptConfig struct {
	Database struct {
		Driver   string `yaml:"driver"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		DBName   string `yaml:"dbname"`
		Charset  string `yaml:"charset"`
		SSLMode  string `yaml:"sslmode"`
		Path     string `yaml:"path"`
	} `yaml:"database"`
	AI struct {
		Provider       string `yaml:"provider"`
		BaseURL        string `yaml:"base_url"`
		APIKey         string `yaml:"api_key"`
		Model          string `yaml:"model"`
		MaxTextChars   int    `yaml:"max_text_chars"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"ai"`
	Storage map[string]interface{} `yaml:"storage"`
}

func main() {
	configFile := flag.String("config", "configs/config.yaml", "配置文件路径")
	materialID := flag.Uint("material", 0, "只分析指定资料")
	statuses := flag.String("status", "", "按分析状态筛选，逗号分隔，例如 failed,empty")
	all := flag.Bool("all", false, "分析全部资料")
	flag.Parse()

	if *materialID == 0 && *statuses == "" && !*all {
		flag.Usage()
		os.Exit(2)
	}

	cfg := loadConfig(*configFile)
	logger.InitLogger(cfg)

	db, err := database.InitDB(&cfg.Database, false)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	ctx := context.Background()
	llm, err := service.NewLLMClient(ctx, cfg.AI)
	if err != nil {
		log.Fatalf("模型客户端初始化失败: %v", err)
	}
	storage, err := service.NewStorageProvider(ctx, &cfg.Storage)
	if err != nil {
		log.Fatalf("存储初始化失败: %v", err)
	}

	materials := repository.NewMaterialRepository(db)
	analysis := service.NewTopicAnalysisService(
		materials,
		repository.NewTopicRepository(db),
		repository.NewAnalysisJobRepository(db),
		storage,
		service.NewTextExtractor(),
		service.NewTopicAnalyzer(llm, cfg.AI.MaxTextChars, cfg.AI.Timeout()),
		service.NewMemoryJobQueue(1),
	)

	var ids []uint
	switch {
	case *materialID != 0:
		ids = []uint{*materialID}
	case *all:
		ids, err = materials.IDsByStatus()
	default:
		var filter []model.AnalysisStatus
		for _, s := range strings.Split(*statuses, ",") {
			if s = strings.TrimSpace(s); s != "" {
				filter = append(filter, model.AnalysisStatus(s))
			}
		}
		ids, err = materials.IDsByStatus(filter...)
	}
	if err != nil {
		log.Fatalf("查询资料失败: %v", err)
	}

	log.Printf("开始分析 %d 份资料...", len(ids))
	failed := 0
	for _, id := range ids {
		outcome, err := analysis.AnalyzeMaterial(ctx, id)
		if err != nil {
			failed++
			log.Printf("资料 %d 分析失败: %v", id, err)
			continue
		}
		log.Printf("资料 %d: %s，主题 %d 个，跳过 %d 条", id, outcome.Status, outcome.TopicCount, outcome.Skipped)
	}
	log.Printf("完成！失败 %d 份", failed)
}

func loadConfig(path string) *config.Config {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	var sc scriptConfig
	if err := yaml.Unmarshal(data, &sc); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	cfg := &config.Config{}
	cfg.Server.Mode = "release"
	cfg.Database = config.DatabaseConfig{
		Driver:    sc.Database.Driver,
		Host:      sc.Database.Host,
		Port:      sc.Database.Port,
		User:      sc.Database.User,
		Password:  sc.Database.Password,
		DBName:    sc.Database.DBName,
		Charset:   sc.Database.Charset,
		ParseTime: true,
		SSLMode:   sc.Database.SSLMode,
		Path:      sc.Database.Path,
	}
	cfg.AI = config.AIConfig(sc.AI)

	// storage 段的键与 mapstructure 标签一致，逐项读取字符串和布尔值
	str := func(key string) string {
		if v, ok := sc.Storage[key].(string); ok {
			return v
		}
		return ""
	}
	useSSL, _ := sc.Storage["minio_use_ssl"].(bool)
	cfg.Storage = config.StorageConfig{
		Type:              str("type"),
		LocalPath:         str("local_path"),
		PublicBaseURL:     str("public_base_url"),
		MinioEndpoint:     str("minio_endpoint"),
		MinioAccessID:     str("minio_access_key"),
		MinioSecret:       str("minio_secret_key"),
		MinioBucket:       str("minio_bucket"),
		MinioUseSSL:       useSSL,
		OSSEndpoint:       str("oss_endpoint"),
		OSSAccessKey:      str("oss_access_key"),
		OSSSecretKey:      str("oss_secret_key"),
		OSSBucket:         str("oss_bucket"),
		DriveClientID:     str("drive_client_id"),
		DriveClientSecret: str("drive_client_secret"),
		DriveRefreshToken: str("drive_refresh_token"),
		DriveParentFolder: str("drive_parent_folder"),
	}
	if cfg.Storage.LocalPath == "" {
		cfg.Storage.LocalPath = "uploads"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "mysql"
	}
	return cfg
}
