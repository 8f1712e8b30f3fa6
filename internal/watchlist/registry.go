// Package watchlist 管理自动同步的标的清单。清单是一个 YAML 文件，
// 条目先过 JSON Schema 再进内存，文件变更时热加载。
package watchlist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"tradewise/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Entry 清单里的一只标的。
type Entry struct {
	Symbol string `yaml:"symbol" json:"symbol"`
	Type   string `yaml:"type" json:"type"`
	Name   string `yaml:"name,omitempty" json:"name,omitempty"`
}

// FileConfig 映射 watchlist.yaml。
type FileConfig struct {
	Watchlist []Entry `yaml:"watchlist"`
}

// Snapshot 当前清单快照。
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Entries  []Entry
}

// ChangeListener 在清单重载时触发。
type ChangeListener func(Snapshot)

// Registry 持有清单并监听文件更新。
type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

const entrySchemaJSON = `{
	"type": "object",
	"required": ["symbol"],
	"properties": {
		"symbol": {"type": "string", "minLength": 1},
		"type": {"type": "string", "enum": ["stock", "fund", "crypto"]},
		"name": {"type": "string"}
	},
	"additionalProperties": false
}`

var entrySchema = jsonschema.MustCompileString("watchlist-entry.json", entrySchemaJSON)

// NewRegistry 读取清单文件并监听更新。
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("watchlist registry requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read watchlist failed: %w", err)
	}
	r := &Registry{path: path, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("watchlist reload failed: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	return r, nil
}

// Snapshot 返回当前清单。
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// Entries 返回当前清单条目。
func (r *Registry) Entries() []Entry {
	return r.Snapshot().Entries
}

// OnChange 注册重载回调。
func (r *Registry) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) reload() error {
	cfg, err := readWatchlistFile(r.path)
	if err != nil {
		return err
	}
	entries := make([]Entry, 0, len(cfg.Watchlist))
	seen := make(map[string]bool)
	for i, entry := range cfg.Watchlist {
		entry.Symbol = strings.TrimSpace(entry.Symbol)
		if entry.Type == "" {
			entry.Type = "stock"
		}
		if err := validateEntry(entry); err != nil {
			logger.Errorf("watchlist entry %d rejected: %v", i, err)
			continue
		}
		if seen[entry.Symbol] {
			continue
		}
		seen[entry.Symbol] = true
		entries = append(entries, entry)
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Entries:  entries,
	}
	r.mu.Unlock()
	logger.Infof("watchlist loaded %d entries from %s", len(entries), r.path)
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := cloneSnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer safeRecover("watchlist listener")
			cb(snap)
		}(fn)
	}
}

func validateEntry(entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return entrySchema.Validate(doc)
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := src
	dst.Entries = append([]Entry(nil), src.Entries...)
	return dst
}

func readWatchlistFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read watchlist failed: %w", err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse watchlist failed: %w", err)
	}
	return cfg, nil
}

func safeRecover(tag string) {
	if r := recover(); r != nil {
		logger.Errorf("%s panic: %v", tag, r)
	}
}
