package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/GrainArc/GeoEdit/methods"
	"github.com/GrainArc/GeoEdit/models"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListen   = ":8080"
	DefaultDriver   = "sqlite"
	DefaultSQLite   = "geoedit.db"
	DefaultLogLevel = "info"
)

var Drivers = []string{"sqlite", "postgres"}

// EnvDSN 覆盖配置文件中的数据库连接串
const EnvDSN = "GEOEDIT_DSN"

type Config struct {
	XMLName     xml.Name           `xml:"config" yaml:"-"`
	Listen      string             `xml:"listen" yaml:"listen"`
	Database    DatabaseConfig     `xml:"database" yaml:"database"`
	LogLevel    string             `xml:"loglevel" yaml:"logLevel"`
	Collections []CollectionConfig `xml:"collections>collection" yaml:"collections"`
	Editor      EditorConfig       `xml:"editor" yaml:"editor"`
}

type DatabaseConfig struct {
	Driver   string `xml:"driver" yaml:"driver"` // sqlite / postgres
	DSN      string `xml:"dsn" yaml:"dsn"`
	Host     string `xml:"host" yaml:"host"`
	Port     string `xml:"port" yaml:"port"`
	User     string `xml:"user" yaml:"user"`
	Password string `xml:"password" yaml:"password"`
	Dbname   string `xml:"dbname" yaml:"dbname"`
}

type CollectionConfig struct {
	ID     string            `xml:"id,attr" yaml:"id"`
	Title  string            `xml:"title,attr" yaml:"title"`
	CRS    string            `xml:"crs,attr" yaml:"crs"`
	Fields []models.FieldDef `xml:"field" yaml:"fields"`
}

// EditorConfig 编辑端参数，时长使用 "300ms"、"30s" 这类写法
type EditorConfig struct {
	BaseURL        string `xml:"baseurl" yaml:"baseUrl"`
	Projection     string `xml:"projection" yaml:"projection"`
	GraceDelay     string `xml:"gracedelay" yaml:"graceDelay"`
	RequestTimeout string `xml:"requesttimeout" yaml:"requestTimeout"`
	Precision      int    `xml:"precision" yaml:"precision"`
}

// Load 读取配置文件，.xml 按 XML 解析，其余按 YAML 解析
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		err = xml.Unmarshal(data, cfg)
	default:
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDriver
	}
	if dsn := os.Getenv(EnvDSN); dsn != "" {
		c.Database.DSN = dsn
	}
	if c.Database.DSN == "" {
		switch c.Database.Driver {
		case "postgres":
			d := c.Database
			c.Database.DSN = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC", d.Host, d.User, d.Password, d.Dbname, d.Port)
		default:
			c.Database.DSN = DefaultSQLite
		}
	}
}

// Validate 检查驱动、集合与时长配置
func (c *Config) Validate() error {
	if !methods.IsStringInSlice(c.Database.Driver, Drivers) {
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	seen := make(map[string]bool)
	for _, coll := range c.Collections {
		if coll.ID == "" && coll.Title == "" {
			return fmt.Errorf("collection needs an id or a title")
		}
		id := CollectionID(coll)
		if seen[id] {
			return fmt.Errorf("duplicate collection %q", id)
		}
		seen[id] = true
	}
	if _, err := ParseDuration(c.Editor.GraceDelay, 0); err != nil {
		return fmt.Errorf("editor graceDelay: %w", err)
	}
	if _, err := ParseDuration(c.Editor.RequestTimeout, 0); err != nil {
		return fmt.Errorf("editor requestTimeout: %w", err)
	}
	return nil
}

// ParseDuration 空字符串返回默认值
func ParseDuration(s string, def time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}
