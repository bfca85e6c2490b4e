package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/GrainArc/GeoEdit/methods"
	"github.com/GrainArc/GeoEdit/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// DefaultStorageCRS 未配置 crs 的集合按 CRS84 存储
const DefaultStorageCRS = "http://www.opengis.net/def/crs/OGC/1.3/CRS84"

// OpenDB 连接数据库、迁移表结构并写入配置中的集合
func OpenDB(cfg *Config, log *slog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.Database.DSN)
	default:
		dialector = sqlite.Open(cfg.Database.DSN)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
		// 设置命名策略
		NamingStrategy: schema.NamingStrategy{SingularTable: true},
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Database.Driver, err)
	}
	if cfg.Database.Driver == "sqlite" {
		// sqlite 只允许一个写连接
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	if err := models.Migrate(db); err != nil {
		return nil, err
	}
	if err := SeedCollections(db, cfg.Collections); err != nil {
		return nil, err
	}
	log.Info("database ready", "driver", cfg.Database.Driver, "collections", len(cfg.Collections))
	return db, nil
}

// SeedCollections 按配置写入或更新集合及其 JSON Schema
func SeedCollections(db *gorm.DB, colls []CollectionConfig) error {
	for _, c := range colls {
		id := CollectionID(c)
		title := c.Title
		if title == "" {
			title = id
		}
		crs := c.CRS
		if crs == "" {
			crs = DefaultStorageCRS
		}
		sch, err := methods.BuildSchema(title, c.Fields)
		if err != nil {
			return fmt.Errorf("collection %s: %w", id, err)
		}
		row := models.CollectionRow{ID: id, Title: title, CRS: crs, Schema: sch}
		err = db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("seed collection %s: %w", id, err)
		}
	}
	return nil
}

// CollectionID 未配置 id 时由标题生成
func CollectionID(c CollectionConfig) string {
	if c.ID != "" {
		return c.ID
	}
	return methods.CollectionSlug(c.Title)
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return logger.Info
	case "warn", "info":
		return logger.Warn
	case "error":
		return logger.Error
	}
	return logger.Silent
}
