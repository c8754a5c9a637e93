// Package config loads a pathoram-bench run's configuration from a YAML
// file: which storage backend to talk to, how to derive the encryption
// key, and the ORAM's shape (N, Z, packing parameter).
package config

import (
	"fmt"
	"io/ioutil"
	"os"

	"golang.org/x/crypto/ssh/terminal"
	"gopkg.in/yaml.v2"

	"github.com/fenwick-labs/pathoram"
	pcrypto "github.com/fenwick-labs/pathoram/crypto"
	"github.com/fenwick-labs/pathoram/oramlb"
	"github.com/fenwick-labs/pathoram/transport"
)

// StorageProvider names exactly one backend to wire into a Channel.
// Exactly one of the four groups must be populated.
type StorageProvider struct {
	B2AcctId string `yaml:"b2-acct-id"`
	B2KeyId  string `yaml:"b2-key-id"`
	B2AppKey string `yaml:"b2-app-key"`
	B2Bucket string `yaml:"b2-bucket"`

	S3AppId  string `yaml:"s3-app-id"`
	S3AppKey string `yaml:"s3-app-key"`
	S3Bucket string `yaml:"s3-bucket"`
	S3Url    string `yaml:"s3-url"`
	S3Region string `yaml:"s3-region"`

	GCSBucketName      string `yaml:"gcs-bucket-name"`
	GCSCredentialsPath string `yaml:"gcs-credentials-path"`

	DiskPath string `yaml:"disk-path"`

	Retry     int `yaml:"retry"`      // max tries per channel op; 0 (default) or 1 means no retry
	CacheSize int `yaml:"cache-size"` // in-memory LRU entries in front of the backend, 0 disables
}

func (sp *StorageProvider) hasB2() bool   { return sp.B2AcctId != "" || sp.B2Bucket != "" }
func (sp *StorageProvider) hasS3() bool   { return sp.S3Bucket != "" || sp.S3AppId != "" }
func (sp *StorageProvider) hasGCS() bool  { return sp.GCSBucketName != "" }
func (sp *StorageProvider) hasDisk() bool { return sp.DiskPath != "" }

func (sp *StorageProvider) count() int {
	n := 0
	for _, has := range []bool{sp.hasB2(), sp.hasS3(), sp.hasGCS(), sp.hasDisk()} {
		if has {
			n++
		}
	}
	return n
}

// Channel builds the transport.Channel this provider describes, sized
// for pageSize-byte pages.
func (sp *StorageProvider) Channel(pageSize int) (transport.Channel, error) {
	if sp == nil || sp.count() == 0 {
		return nil, fmt.Errorf("config: no storage provider defined")
	}
	if sp.count() > 1 {
		return nil, fmt.Errorf("config: only one storage provider may be defined")
	}

	opts := transport.Options{RetryAttempts: sp.Retry, CacheSize: sp.CacheSize}

	switch {
	case sp.hasB2():
		return transport.NewB2Channel(sp.B2AcctId, sp.B2KeyId, sp.B2AppKey, sp.B2Bucket, pageSize, opts)
	case sp.hasS3():
		return transport.NewS3Channel(sp.S3AppId, sp.S3AppKey, sp.S3Bucket, sp.S3Url, sp.S3Region, pageSize, opts)
	case sp.hasGCS():
		return transport.NewGCSChannel(sp.GCSBucketName, sp.GCSCredentialsPath, pageSize, opts)
	default:
		return transport.NewDiskChannel(sp.DiskPath, pageSize, opts)
	}
}

// Bench is the full configuration for cmd/pathoram-bench: the ORAM's
// shape, which storage backend backs it, and how to derive the cipher
// key.
type Bench struct {
	StorageProvider *StorageProvider `yaml:"storage-provider"`

	N         int `yaml:"n"`          // declared capacity, number of leaves
	Z         int `yaml:"z"`          // bucket capacity
	ValueSize int `yaml:"value-size"` // payload width in bytes
	MaxStash  int `yaml:"max-stash"`  // 0 uses the library default

	LPP int `yaml:"lpp"` // large-bucket packing parameter; 0 disables ORAMLB

	Cipher   string `yaml:"cipher"`   // "aes-gcm" (default) or "cbc"
	Password string `yaml:"password"` // prompted for if empty

	EvictionStrategy string `yaml:"eviction-strategy"` // "level" (default) or "greedy"
}

// FromFile reads and strictly parses a YAML config file; unknown keys
// are an error, matching the teacher's config loader.
func FromFile(path string) (*Bench, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	parsed := &Bench{}
	if err := yaml.UnmarshalStrict(raw, parsed); err != nil {
		return nil, err
	}
	return parsed, nil
}

// password returns cfg.Password, prompting on the terminal if it's
// empty. The prompt never echoes the password to the terminal.
func (cfg *Bench) password() (string, error) {
	if cfg.Password != "" {
		return cfg.Password, nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	raw, err := terminal.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("config: read password: %w", err)
	}
	return string(raw), nil
}

// cipher derives the key at the length each scheme needs (AES-GCM: 32
// bytes; CBC: 64, split into independent encryption and MAC halves) and
// builds the configured Cipher.
func (cfg *Bench) cipher() (pcrypto.Cipher, error) {
	password, err := cfg.password()
	if err != nil {
		return nil, err
	}

	switch cfg.Cipher {
	case "", "aes-gcm":
		return pcrypto.NewAESGCM(pcrypto.DeriveKey(password, 32))
	case "cbc":
		return pcrypto.NewCBC(pcrypto.DeriveKey(password, 64))
	default:
		return nil, fmt.Errorf("config: unknown cipher %q", cfg.Cipher)
	}
}

func (cfg *Bench) evictionStrategy() (pathoram.EvictionStrategy, error) {
	switch cfg.EvictionStrategy {
	case "", "level":
		return pathoram.EvictLevelByLevel, nil
	case "greedy":
		return pathoram.EvictGreedyByDepth, nil
	default:
		return 0, fmt.Errorf("config: unknown eviction strategy %q", cfg.EvictionStrategy)
	}
}

// Client builds a plain pathoram.Client from cfg.
func (cfg *Bench) Client() (*pathoram.Client, error) {
	if cfg.N <= 0 || cfg.Z <= 0 || cfg.ValueSize <= 0 {
		return nil, fmt.Errorf("config: n, z, and value-size must be positive")
	}
	strategy, err := cfg.evictionStrategy()
	if err != nil {
		return nil, err
	}

	cipher, err := cfg.cipher()
	if err != nil {
		return nil, err
	}
	pageSize, err := bucketPageSize(cipher, cfg.Z, cfg.ValueSize)
	if err != nil {
		return nil, err
	}

	channel, err := cfg.StorageProvider.Channel(pageSize)
	if err != nil {
		return nil, err
	}

	return pathoram.New(pathoram.ClientConfig{
		N:                cfg.N,
		Z:                cfg.Z,
		ValueSize:        cfg.ValueSize,
		MaxStash:         cfg.MaxStash,
		EvictionStrategy: strategy,
	}, channel, cipher)
}

// bucketPageSize probes cipher with an empty bucket's plaintext to
// determine its deterministic ciphertext length, the same way
// pathoram.New validates a channel's page size — needed here because the
// channel must be constructed with a fixed page size before the client
// exists to do that validation itself.
func bucketPageSize(cipher pcrypto.Cipher, z, valueSize int) (int, error) {
	probe := pathoram.MarshalBucket(pathoram.NewEmptyBucket(z, valueSize), valueSize)
	ct, err := cipher.EncryptBucket(probe)
	if err != nil {
		return 0, fmt.Errorf("config: probe encryption failed: %w", err)
	}
	return len(ct), nil
}

// ORAMLBClient builds an oramlb.Client from cfg. Returns an error if
// cfg.LPP is zero.
func (cfg *Bench) ORAMLBClient() (*oramlb.Client, error) {
	if cfg.LPP <= 0 {
		return nil, fmt.Errorf("config: lpp must be positive to build an ORAMLB client")
	}
	if cfg.N <= 0 || cfg.Z <= 0 || cfg.ValueSize <= 0 {
		return nil, fmt.Errorf("config: n, z, and value-size must be positive")
	}

	cipher, err := cfg.cipher()
	if err != nil {
		return nil, err
	}

	innerGeo := pathoram.NewGeometry(cfg.N)
	vgeo := oramlb.NewGeometry(innerGeo, cfg.LPP)
	bucketLen, err := bucketPageSize(cipher, cfg.Z, cfg.ValueSize)
	if err != nil {
		return nil, err
	}
	pageSize := bucketLen * vgeo.BucketsPerPage()

	channel, err := cfg.StorageProvider.Channel(pageSize)
	if err != nil {
		return nil, err
	}

	return oramlb.New(oramlb.ClientConfig{
		N:         cfg.N,
		Z:         cfg.Z,
		ValueSize: cfg.ValueSize,
		LPP:       cfg.LPP,
		MaxStash:  cfg.MaxStash,
	}, channel, cipher)
}
