package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrParm is returned by Validate for any configuration value spec.md
// §9 Open Question (b) flags as unvalidated in the source — negative
// Timeout/Lifetime/DacsRate, an out-of-enum WrapResponse, and the like
// are rejected here at load time instead of being silently accepted.
var ErrParm = errors.New("config: invalid parameter")

var validate = validator.New()

// Validate checks cfg against its struct-tag constraints plus the
// cross-field rule struct tags can't express (storage requiring its
// backend-specific fields).
func Validate(cfg *Config) error {
	// validate.Struct recurses into nested struct fields (including the
	// Attributes embedded in each ChannelConfig), so this single call
	// also enforces every Attributes field's tags.
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrParm, err)
	}

	switch cfg.Storage.Type {
	case "badger":
		if cfg.Storage.Badger.Dir == "" {
			return fmt.Errorf("%w: storage.badger.dir is required when storage.type=badger", ErrParm)
		}
	case "s3":
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("%w: storage.s3.bucket is required when storage.type=s3", ErrParm)
		}
	case "postgres":
		if cfg.Storage.Postgres.Host == "" || cfg.Storage.Postgres.Database == "" {
			return fmt.Errorf("%w: storage.postgres.host and storage.postgres.database are required when storage.type=postgres", ErrParm)
		}
	}

	return nil
}

// ValidateAttributes checks a single Attributes value in isolation,
// the path channel.Open takes for a programmatically constructed
// Attributes that never passed through a loaded Config.
func ValidateAttributes(a *Attributes) error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("%w: %v", ErrParm, err)
	}
	return nil
}
