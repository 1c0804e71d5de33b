package xconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	kjson "github.com/knadh/koanf/parsers/json"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// unmarshalTag 是 Unmarshal 使用的结构体标签。
const unmarshalTag = "koanf"

// delim 是配置键路径的分隔符，如 "seckill.workers"。
const delim = "."

// Format 定义配置文件格式。
type Format string

// 支持的配置格式。
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Config 定义配置读取接口。
// 基础操作直接使用 Client() 返回的 koanf 实例。
type Config interface {
	// Client 返回底层的 koanf 实例。
	Client() *koanf.Koanf

	// Unmarshal 将指定路径的配置块反序列化到目标结构体。
	// path 为空字符串时反序列化整个配置。
	Unmarshal(path string, target any) error

	// Reload 重新读取配置文件。并发安全。
	// 从字节数据创建的配置返回 ErrWatchUnsupported。
	Reload() error

	// Path 返回配置文件路径；从字节数据创建的配置返回空字符串。
	Path() string

	// Format 返回配置格式。
	Format() Format
}

// fileConfig 是 Config 的 koanf 实现。
type fileConfig struct {
	mu     sync.RWMutex
	k      *koanf.Koanf
	path   string // 空表示从字节数据创建
	format Format
}

// New 从文件创建配置实例，按扩展名检测格式。
func New(path string) (Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	format, err := formatFromExt(path)
	if err != nil {
		return nil, err
	}

	c := &fileConfig{path: path, format: format}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewFromBytes 从字节数据创建配置实例。
// 空数据创建空配置，Unmarshal 得到目标结构体的零值。
func NewFromBytes(data []byte, format Format) (Config, error) {
	k, err := parse(data, format)
	if err != nil {
		return nil, err
	}
	return &fileConfig{k: k, format: format}, nil
}

func (c *fileConfig) Client() *koanf.Koanf {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.k
}

func (c *fileConfig) Unmarshal(path string, target any) error {
	c.mu.RLock()
	k := c.k
	c.mu.RUnlock()

	if err := k.UnmarshalWithConf(path, target, koanf.UnmarshalConf{Tag: unmarshalTag}); err != nil {
		return fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	return nil
}

func (c *fileConfig) Reload() error {
	if c.path == "" {
		return ErrWatchUnsupported
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	// 先解析后替换：解析失败时保留旧配置
	k, err := parse(data, c.format)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.k = k
	c.mu.Unlock()
	return nil
}

func (c *fileConfig) Path() string   { return c.path }
func (c *fileConfig) Format() Format { return c.format }

// formatFromExt 按文件扩展名检测格式。
func formatFromExt(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// parse 把原始数据解析到新的 koanf 实例。
func parse(data []byte, format Format) (*koanf.Koanf, error) {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = kyaml.Parser()
	case FormatJSON:
		parser = kjson.Parser()
	default:
		return nil, ErrUnsupportedFormat
	}

	k := koanf.New(delim)
	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), parser); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
		}
	}
	return k, nil
}
