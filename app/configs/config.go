package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type Config struct {
	Agent  AgentConfig  `json:"agent"`
	Models ModelConfig  `json:"models"`
	Memory MemoryConfig `json:"memory"`
	HTTP   HTTPConfig   `json:"http"`
	Chat   ChatConfig   `json:"chat"`
}

type AgentConfig struct {
	Name string `json:"name"`
}

type ModelConfig struct {
	Orchestrator string `json:"orchestrator"`
	TaskManager  string `json:"task_manager"`
	Specialist   string `json:"specialist"`
}

type MemoryConfig struct {
	OrchestratorTurns int `json:"orchestrator_turns"`
	TaskManagerTurns  int `json:"task_manager_turns"`
	IntentTurns       int `json:"intent_turns"`
	QuestionTurns     int `json:"question_turns"`
	StatusTurns       int `json:"status_turns"`
}

type HTTPConfig struct {
	Port int `json:"port"`
}

type ChatConfig struct {
	RequestTimeoutSec int      `json:"request_timeout_sec"`
	MaxToolRounds     int      `json:"max_tool_rounds"`
	CLIUserID         string   `json:"cli_user_id"`
	ForbiddenKeywords []string `json:"forbidden_keywords"`
}

type Manager struct {
	path string
	mu   sync.RWMutex
	cfg  Config
}

func DefaultPath() string {
	return filepath.Join("config", "config.json")
}

func NewManager(path string) (*Manager, error) {
	cfg := defaultConfig()
	mgr := &Manager{
		path: path,
		cfg:  cfg,
	}
	if err := mgr.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	if err := mgr.save(); err != nil {
		return nil, err
	}
	return mgr, nil
}

func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) Update(apply func(*Config)) (Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	apply(&m.cfg)
	applyDefaults(&m.cfg)
	if err := m.saveLocked(); err != nil {
		return Config{}, err
	}
	return m.cfg, nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return err
	}
	var fileCfg Config
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return err
	}
	m.cfg = fileCfg
	applyDefaults(&m.cfg)
	return nil
}

func (m *Manager) save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m.cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0644)
}

func defaultConfig() Config {
	return Config{
		Agent: AgentConfig{
			Name: "TaskPilot",
		},
		Models: ModelConfig{
			Orchestrator: "gpt-4.1",
			TaskManager:  "gpt-4o",
			Specialist:   "gpt-4o",
		},
		Memory: MemoryConfig{
			OrchestratorTurns: 50,
			TaskManagerTurns:  100,
			IntentTurns:       10,
			QuestionTurns:     50,
			StatusTurns:       50,
		},
		HTTP: HTTPConfig{
			Port: 8080,
		},
		Chat: ChatConfig{
			RequestTimeoutSec: 60,
			MaxToolRounds:     4,
			CLIUserID:         "local_user",
			ForbiddenKeywords: []string{"bomb", "kill", "terrorist"},
		},
	}
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Agent.Name) == "" {
		cfg.Agent.Name = "TaskPilot"
	}
	if strings.TrimSpace(cfg.Models.Orchestrator) == "" {
		cfg.Models.Orchestrator = "gpt-4.1"
	}
	if strings.TrimSpace(cfg.Models.TaskManager) == "" {
		cfg.Models.TaskManager = "gpt-4o"
	}
	if strings.TrimSpace(cfg.Models.Specialist) == "" {
		cfg.Models.Specialist = "gpt-4o"
	}
	if cfg.Memory.OrchestratorTurns <= 0 {
		cfg.Memory.OrchestratorTurns = 50
	}
	if cfg.Memory.TaskManagerTurns <= 0 {
		cfg.Memory.TaskManagerTurns = 100
	}
	if cfg.Memory.IntentTurns <= 0 {
		cfg.Memory.IntentTurns = 10
	}
	if cfg.Memory.QuestionTurns <= 0 {
		cfg.Memory.QuestionTurns = 50
	}
	if cfg.Memory.StatusTurns <= 0 {
		cfg.Memory.StatusTurns = 50
	}
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.Chat.RequestTimeoutSec <= 0 {
		cfg.Chat.RequestTimeoutSec = 60
	}
	if cfg.Chat.MaxToolRounds <= 0 {
		cfg.Chat.MaxToolRounds = 4
	}
	if strings.TrimSpace(cfg.Chat.CLIUserID) == "" {
		cfg.Chat.CLIUserID = "local_user"
	}
	if len(cfg.Chat.ForbiddenKeywords) == 0 {
		cfg.Chat.ForbiddenKeywords = []string{"bomb", "kill", "terrorist"}
	}
}
