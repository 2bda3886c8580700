package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/marcus/pratica/internal/models"
)

const configFile = ".pratica/config.json"
const lockFile = ".pratica/config.json.lock"

// Defaults used when the workspace config leaves a field unset
const (
	DefaultExamCount    = 10
	DefaultExamDuration = 30 * time.Minute
	DefaultPageSize     = 20
	DefaultQuestionBank = "exercicios.json"
)

// Load reads the config from disk
func Load(baseDir string) (*models.Config, error) {
	configPath := filepath.Join(baseDir, configFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &models.Config{}, nil
		}
		return nil, err
	}

	var cfg models.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the config to disk using atomic write (temp file + rename)
func Save(baseDir string, cfg *models.Config) error {
	configPath := filepath.Join(baseDir, configFile)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "config-*.json.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, configPath)
}

// withConfigLock serializes read-modify-write of config.json using flock
func withConfigLock(baseDir string, fn func(cfg *models.Config)) error {
	lockPath := filepath.Join(baseDir, lockFile)

	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return err
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN)

	cfg, err := Load(baseDir)
	if err != nil {
		return err
	}
	fn(cfg)
	return Save(baseDir, cfg)
}

// GetFilters returns the last list filters, sanitized
func GetFilters(baseDir string) (models.Filters, error) {
	cfg, err := Load(baseDir)
	if err != nil {
		return models.Filters{}.Sanitized(), err
	}
	return cfg.Filters.Sanitized(), nil
}

// SetFilters remembers the list filters for the next run
func SetFilters(baseDir string, f models.Filters) error {
	return withConfigLock(baseDir, func(cfg *models.Config) {
		cfg.Filters = f.Sanitized()
	})
}

// ExamDefaults holds how many questions an exam picks and how long it lasts
type ExamDefaults struct {
	Count    int
	Duration time.Duration
}

// GetExamDefaults returns the configured exam settings, falling back to defaults
// for missing or invalid values
func GetExamDefaults(baseDir string) (ExamDefaults, error) {
	out := ExamDefaults{Count: DefaultExamCount, Duration: DefaultExamDuration}
	cfg, err := Load(baseDir)
	if err != nil {
		return out, err
	}
	if cfg.ExamCount > 0 {
		out.Count = cfg.ExamCount
	}
	if cfg.ExamDuration != "" {
		if d, err := time.ParseDuration(cfg.ExamDuration); err == nil && d > 0 {
			out.Duration = d
		}
	}
	return out, nil
}

// SetExamDefaults saves the exam settings
func SetExamDefaults(baseDir string, d ExamDefaults) error {
	return withConfigLock(baseDir, func(cfg *models.Config) {
		cfg.ExamCount = d.Count
		cfg.ExamDuration = d.Duration.String()
	})
}

// GetQuestionBank returns the bank file path. Relative paths resolve against baseDir.
func GetQuestionBank(baseDir string) (string, error) {
	cfg, err := Load(baseDir)
	path := DefaultQuestionBank
	if err == nil && cfg.QuestionBank != "" {
		path = cfg.QuestionBank
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	return path, err
}

// SetQuestionBank saves the bank file path
func SetQuestionBank(baseDir, path string) error {
	return withConfigLock(baseDir, func(cfg *models.Config) {
		cfg.QuestionBank = path
	})
}

// GetPageSize returns the list page size
func GetPageSize(baseDir string) int {
	cfg, err := Load(baseDir)
	if err != nil || cfg.PageSize <= 0 {
		return DefaultPageSize
	}
	return cfg.PageSize
}
