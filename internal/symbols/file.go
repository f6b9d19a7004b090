package symbols

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"papersim/internal/logger"
	"papersim/internal/market"
)

const catalogSchema = `{
  "type": "object",
  "required": ["symbols"],
  "additionalProperties": false,
  "properties": {
    "symbols": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["symbol"],
        "additionalProperties": false,
        "properties": {
          "symbol": {"type": "string", "pattern": "^[A-Za-z0-9./:_-]{1,24}$"},
          "name":   {"type": "string"}
        }
      }
    }
  }
}`

// catalogFile 映射目录文件。
type catalogFile struct {
	Symbols []market.SymbolMatch `yaml:"symbols"`
}

// Snapshot 是目录某一次加载的结果。
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Count    int
}

// FileCatalog 从 YAML 文件加载代码表，可选监听文件变化自动重载。
// 重载失败时保留上一版。
type FileCatalog struct {
	path   string
	v      *viper.Viper
	schema *jsonschema.Schema

	mu      sync.RWMutex
	current *Static
	snap    Snapshot
}

func NewFileCatalog(path string, watch bool) (*FileCatalog, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("symbol catalog requires path")
	}
	schema, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("compile catalog schema failed: %w", err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read symbol catalog failed: %w", err)
	}
	c := &FileCatalog{path: path, v: v, schema: schema}
	if err := c.reload(); err != nil {
		return nil, err
	}
	if watch {
		v.OnConfigChange(func(evt fsnotify.Event) {
			if err := c.reload(); err != nil {
				logger.Errorf("symbol catalog reload failed: %v", err)
			}
		})
		v.WatchConfig()
	}
	return c, nil
}

func (c *FileCatalog) SearchSymbols(ctx context.Context, query string) ([]market.SymbolMatch, error) {
	c.mu.RLock()
	cur := c.current
	c.mu.RUnlock()
	return cur.SearchSymbols(ctx, query)
}

func (c *FileCatalog) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

func (c *FileCatalog) reload() error {
	entries, err := c.readFile()
	if err != nil {
		return err
	}
	static := NewStatic(entries)
	c.mu.Lock()
	c.current = static
	c.snap = Snapshot{
		Version:  c.snap.Version + 1,
		LoadedAt: time.Now(),
		Count:    static.Len(),
	}
	c.mu.Unlock()
	logger.Infof("symbol catalog loaded %d symbols from %s", static.Len(), filepath.Base(c.path))
	return nil
}

func (c *FileCatalog) readFile() ([]market.SymbolMatch, error) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read symbol catalog failed: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse symbol catalog failed: %w", err)
	}
	asJSON, err := toJSONValue(doc)
	if err != nil {
		return nil, fmt.Errorf("parse symbol catalog failed: %w", err)
	}
	if err := c.schema.Validate(asJSON); err != nil {
		return nil, fmt.Errorf("symbol catalog invalid: %w", err)
	}
	var cfg catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse symbol catalog failed: %w", err)
	}
	return cfg.Symbols, nil
}

// toJSONValue 把 YAML 解码结果转换为 encoding/json 风格的值，供 schema 校验。
func toJSONValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("catalog.json", strings.NewReader(catalogSchema)); err != nil {
		return nil, err
	}
	return compiler.Compile("catalog.json")
}
