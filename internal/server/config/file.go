package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dmitrijs2005/deaddrop/internal/flagx"
	"github.com/dmitrijs2005/deaddrop/internal/timex"
)

// FileConfig is the on-disk shape of the configuration. Zero values leave
// the current setting untouched.
type FileConfig struct {
	EndpointAddrGRPC string `json:"endpoint_addr_grpc" toml:"endpoint_addr_grpc"`
	DatabaseDSN      string `json:"database_dsn" toml:"database_dsn"`
	LogLevel         string `json:"log_level" toml:"log_level"`
	LogFormat        string `json:"log_format" toml:"log_format"`

	SecretKey         string         `json:"secret_key" toml:"secret_key"`
	SessionExpiration timex.Duration `json:"session_expiration" toml:"session_expiration"`
	ShutdownTimeout   timex.Duration `json:"shutdown_timeout" toml:"shutdown_timeout"`

	WordlistPath   string `json:"wordlist_path" toml:"wordlist_path"`
	NumWords       int    `json:"num_words" toml:"num_words"`
	MaxCodenameLen int    `json:"max_codename_len" toml:"max_codename_len"`

	Pepper        string `json:"pepper" toml:"pepper"`
	HashAlgorithm string `json:"hash_algorithm" toml:"hash_algorithm"`
	ScryptN       int    `json:"scrypt_n" toml:"scrypt_n"`
	ScryptR       int    `json:"scrypt_r" toml:"scrypt_r"`
	ScryptP       int    `json:"scrypt_p" toml:"scrypt_p"`
	ArgonTime     uint32 `json:"argon_time" toml:"argon_time"`
	ArgonMemory   uint32 `json:"argon_memory" toml:"argon_memory"`
	ArgonThreads  uint8  `json:"argon_threads" toml:"argon_threads"`

	KeysDir          string `json:"keys_dir" toml:"keys_dir"`
	KeyringSecret    string `json:"keyring_secret" toml:"keyring_secret"`
	EntropyThreshold int    `json:"entropy_threshold" toml:"entropy_threshold"`
	KeygenWorkers    int    `json:"keygen_workers" toml:"keygen_workers"`
	KeygenQueueSize  int    `json:"keygen_queue_size" toml:"keygen_queue_size"`

	JournalistKey  string `json:"journalist_key" toml:"journalist_key"`
	StoreDir       string `json:"store_dir" toml:"store_dir"`
	SpoolDir       string `json:"spool_dir" toml:"spool_dir"`
	SpoolThreshold int64  `json:"spool_threshold" toml:"spool_threshold"`

	S3RootUser     string `json:"s3_root_user" toml:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password" toml:"s3_root_password"`
	S3Bucket       string `json:"s3_bucket" toml:"s3_bucket"`
	S3Region       string `json:"s3_region" toml:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint" toml:"s3_base_endpoint"`
	S3Prefix       string `json:"s3_prefix" toml:"s3_prefix"`
}

// parseFile loads the file named by -c/-config, if any, and overlays it on
// config. Files ending in .toml are TOML; anything else is JSON.
func parseFile(config *Config) error {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return nil
	}

	c, err := readFile(path)
	if err != nil {
		return err
	}
	c.apply(config)
	return nil
}

func readFile(path string) (*FileConfig, error) {
	c := &FileConfig{}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.DecodeFile(path, c); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		return c, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := json.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setNumber[T int | int64 | uint32 | uint8](dst *T, v T) {
	if v != 0 {
		*dst = v
	}
}

func (c *FileConfig) apply(config *Config) {
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)

	setString(&config.SecretKey, c.SecretKey)
	if c.SessionExpiration.Duration != 0 {
		config.SessionExpiration = c.SessionExpiration.Duration
	}
	if c.ShutdownTimeout.Duration != 0 {
		config.ShutdownTimeout = c.ShutdownTimeout.Duration
	}

	setString(&config.WordlistPath, c.WordlistPath)
	setNumber(&config.NumWords, c.NumWords)
	setNumber(&config.MaxCodenameLen, c.MaxCodenameLen)

	setString(&config.Pepper, c.Pepper)
	setString(&config.HashAlgorithm, c.HashAlgorithm)
	setNumber(&config.ScryptN, c.ScryptN)
	setNumber(&config.ScryptR, c.ScryptR)
	setNumber(&config.ScryptP, c.ScryptP)
	setNumber(&config.ArgonTime, c.ArgonTime)
	setNumber(&config.ArgonMemory, c.ArgonMemory)
	setNumber(&config.ArgonThreads, c.ArgonThreads)

	setString(&config.KeysDir, c.KeysDir)
	setString(&config.KeyringSecret, c.KeyringSecret)
	setNumber(&config.EntropyThreshold, c.EntropyThreshold)
	setNumber(&config.KeygenWorkers, c.KeygenWorkers)
	setNumber(&config.KeygenQueueSize, c.KeygenQueueSize)

	setString(&config.JournalistKey, c.JournalistKey)
	setString(&config.StoreDir, c.StoreDir)
	setString(&config.SpoolDir, c.SpoolDir)
	setNumber(&config.SpoolThreshold, c.SpoolThreshold)

	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3Prefix, c.S3Prefix)
}
