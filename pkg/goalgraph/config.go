package goalgraph

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/dan-solli/goalgraph/pkg/model"
	"github.com/dan-solli/goalgraph/pkg/store"
	"github.com/dan-solli/goalgraph/pkg/versioning"
)

// ConfigFileName is the optional settings file inside the store root.
const ConfigFileName = "config.yaml"

// FileConfig is the on-disk form of the settings a store root can carry.
// Zero fields leave the corresponding Config field alone.
type FileConfig struct {
	Backend         string `yaml:"backend" validate:"omitempty,oneof=file sqlite"`
	DBPath          string `yaml:"db_path"`
	BranchCollision string `yaml:"branch_collision" validate:"omitempty,oneof=fail suffix overwrite"`
	LockTimeout     string `yaml:"lock_timeout"`
	Actor           string `yaml:"actor"`
	TracePath       string `yaml:"trace_path"`
}

var fileConfigValidate = newFileConfigValidator()

func newFileConfigValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
	})
	return v
}

// LoadFileConfig reads path. A missing file yields an empty FileConfig.
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &FileConfig{}, nil
	}
	if err != nil {
		return nil, &model.StorageError{Op: "read", Path: path, Err: err}
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, &model.ValidationError{Field: "config", Reason: fmt.Sprintf("%s: %v", path, err)}
	}
	if err := fileConfigValidate.Struct(fc); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, &model.ValidationError{Field: verrs[0].Field(), Reason: "must be one of " + strings.ReplaceAll(verrs[0].Param(), " ", ", ")}
		}
		return nil, &model.ValidationError{Field: "config", Reason: err.Error()}
	}
	if fc.LockTimeout != "" {
		if _, err := time.ParseDuration(fc.LockTimeout); err != nil {
			return nil, &model.ValidationError{Field: "lock_timeout", Reason: err.Error()}
		}
	}
	return &fc, nil
}

// LoadRootConfig reads <root>/config.yaml.
func LoadRootConfig(root string) (*FileConfig, error) {
	return LoadFileConfig(filepath.Join(root, ConfigFileName))
}

// Apply fills the zero fields of cfg from fc. Relative paths are resolved
// against root.
func (fc *FileConfig) Apply(cfg *Config, root string) {
	if cfg.Backend == "" && fc.Backend != "" {
		cfg.Backend = store.Backend(fc.Backend)
	}
	if cfg.DBPath == "" && fc.DBPath != "" {
		cfg.DBPath = resolve(root, fc.DBPath)
	}
	if cfg.BranchCollision == "" && fc.BranchCollision != "" {
		cfg.BranchCollision = versioning.CollisionPolicy(fc.BranchCollision)
	}
	if cfg.LockTimeout == 0 && fc.LockTimeout != "" {
		// validated by LoadFileConfig
		cfg.LockTimeout, _ = time.ParseDuration(fc.LockTimeout)
	}
	if cfg.Actor == "" {
		cfg.Actor = fc.Actor
	}
	if cfg.TracePath == "" && fc.TracePath != "" {
		cfg.TracePath = resolve(root, fc.TracePath)
	}
}

func resolve(root, path string) string {
	if filepath.IsAbs(path) || root == "" {
		return path
	}
	return filepath.Join(root, path)
}
