package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"reqreplay/internal/logger"
	"reqreplay/pkg/model"
)

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`

	Sqlite struct {
		Dsn    string `yaml:"dsn"`
		Prefix string `yaml:"prefix"`
	} `yaml:"sqlite"`

	Log struct {
		Level  string   `yaml:"level"`
		Writer []string `yaml:"writer"`
		File   string   `yaml:"file"`
	} `yaml:"log"`

	DevTools struct {
		URL              string `yaml:"url"`
		ProcessTimeoutMS int    `yaml:"process_timeout_ms"`
		Workers          int    `yaml:"workers"`
	} `yaml:"devtools"`

	Record struct {
		Filters []model.Kind `yaml:"filters"`
	} `yaml:"record"`

	Capture struct {
		FetchTimeoutMS int `yaml:"fetch_timeout_ms"`
	} `yaml:"capture"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	c := &Config{Version: "1.0.0"}
	c.Sqlite.Dsn = "reqreplay.db"
	c.Sqlite.Prefix = "reqreplay_"
	c.Log.Level = "info"
	c.Log.Writer = []string{"console"}
	c.Log.File = "reqreplay.log"
	c.DevTools.URL = "http://127.0.0.1:9222"
	c.DevTools.ProcessTimeoutMS = 3000
	c.DevTools.Workers = 8
	c.Record.Filters = model.DefaultRecordFilters()
	c.Capture.FetchTimeoutMS = 5000
	return c
}

// Load 从 YAML 文件加载配置，文件不存在时返回默认配置
func Load(path string) (*Config, error) {
	c := NewConfig()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	} else if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Sqlite.Dsn) == "" {
		return errors.New("sqlite.dsn 不能为空")
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	for _, w := range c.Log.Writer {
		switch w {
		case "console":
		case "file":
			if c.Log.File == "" {
				return errors.New("log.file 不能为空")
			}
		default:
			return fmt.Errorf("未知日志输出: %q", w)
		}
	}
	if c.DevTools.URL == "" {
		return errors.New("devtools.url 不能为空")
	}
	if c.DevTools.ProcessTimeoutMS <= 0 {
		return errors.New("devtools.process_timeout_ms 必须为正数")
	}
	if c.DevTools.Workers < 0 {
		return errors.New("devtools.workers 不能为负数")
	}
	if c.Capture.FetchTimeoutMS <= 0 {
		return errors.New("capture.fetch_timeout_ms 必须为正数")
	}
	for _, k := range c.Record.Filters {
		if !k.Valid() {
			return fmt.Errorf("未知资源类别: %q", k)
		}
	}
	return nil
}

// LoggerOptions 转换为日志初始化参数
func (c *Config) LoggerOptions() logger.Options {
	return logger.Options{
		Level:   c.Log.Level,
		Writers: c.Log.Writer,
		File:    c.Log.File,
	}
}
