package config

import (
	"time"

	"github.com/c2h5oh/datasize"
)

type Config struct {
	// General configuration
	Env    string `yaml:"env" mapstructure:"env" validate:"required,oneof=development production test"`
	Log    Log    `yaml:"log" mapstructure:"log" validate:"required"`
	App    App    `yaml:"app" mapstructure:"app" validate:"required"`
	Server Server `yaml:"server" mapstructure:"server" validate:"required"`

	// Upload pipeline
	Upload Upload `yaml:"upload" mapstructure:"upload" validate:"required"`

	// Infrastructure components
	Database    Database    `yaml:"database" mapstructure:"database" validate:"required"`
	Objectstore Objectstore `yaml:"objectstore" mapstructure:"objectstore" validate:"required"`
	Metrics     Metrics     `yaml:"metrics" mapstructure:"metrics"`
}

type App struct {
	Name string `yaml:"name" mapstructure:"name" validate:"required"`
	// PublicURL is prepended to retrieval URLs returned by complete. Empty keeps them relative.
	PublicURL string `yaml:"publicUrl" mapstructure:"publicUrl" validate:"omitempty,url"`
}

type Server struct {
	Address      string        `yaml:"address" mapstructure:"address" validate:"required"`
	ReadTimeout  time.Duration `yaml:"readTimeout" mapstructure:"readTimeout" validate:"gte=0"`
	WriteTimeout time.Duration `yaml:"writeTimeout" mapstructure:"writeTimeout" validate:"gte=0"`
	IdleTimeout  time.Duration `yaml:"idleTimeout" mapstructure:"idleTimeout" validate:"gte=0"`
}

type Log struct {
	Level     string `yaml:"level" mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format    string `yaml:"format" mapstructure:"format" validate:"oneof=json text"`
	AddSource bool   `yaml:"addSource" mapstructure:"addSource"`
}

type Upload struct {
	// ScratchDir holds one directory per in-progress upload session.
	ScratchDir   string            `yaml:"scratchDir" mapstructure:"scratchDir" validate:"required"`
	MaxChunkSize datasize.ByteSize `yaml:"maxChunkSize" mapstructure:"maxChunkSize" validate:"gt=0"`
	Reaper       Reaper            `yaml:"reaper" mapstructure:"reaper"`
}

type Reaper struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval" validate:"gt=0"`
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl" validate:"gt=0"`
}

type Database struct {
	Path string `yaml:"path" mapstructure:"path" validate:"required"`
}

type Objectstore struct {
	Type  string           `yaml:"type" mapstructure:"type" validate:"required,oneof=local s3 storj"`
	Local LocalObjectstore `yaml:"local" mapstructure:"local"`
	S3    S3Objectstore    `yaml:"s3" mapstructure:"s3"`
	Storj StorjObjectstore `yaml:"storj" mapstructure:"storj"`
	Cache CacheObjectstore `yaml:"cache" mapstructure:"cache"`
}

type LocalObjectstore struct {
	Root string `yaml:"root" mapstructure:"root" validate:"required"`
}

type S3Objectstore struct {
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Region          string `yaml:"region" mapstructure:"region"`
	Endpoint        string `yaml:"endpoint" mapstructure:"endpoint" validate:"omitempty,url"`
	AccessKeyID     string `yaml:"accessKeyID" mapstructure:"accessKeyID"`
	SecretAccessKey string `yaml:"secretAccessKey" mapstructure:"secretAccessKey"`
	UsePathStyle    bool   `yaml:"usePathStyle" mapstructure:"usePathStyle"`
}

type StorjObjectstore struct {
	AccessGrant string `yaml:"accessGrant" mapstructure:"accessGrant"`
	Bucket      string `yaml:"bucket" mapstructure:"bucket"`
}

// CacheObjectstore fronts a remote objectstore (s3, storj) with the local root.
type CacheObjectstore struct {
	Enabled bool              `yaml:"enabled" mapstructure:"enabled"`
	MaxSize datasize.ByteSize `yaml:"maxSize" mapstructure:"maxSize"`
}

type Metrics struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Path     string `yaml:"path" mapstructure:"path" validate:"required_if=Enabled true"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
}
