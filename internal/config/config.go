// Package config loads the warehouse pipeline settings from an INI-style
// file (dwh.cfg by default). The file carries three sections: MANIFEST,
// DATA_SET and CLUSTER. Settings are read once per process invocation and
// never mutated afterwards.
package config

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	"gopkg.in/ini.v1"

	apperrors "github.com/talerngpong/cloud-datawarehouse/pkg/errors"
)

// ManifestConfig locates the bucket and keys the generated COPY manifests
// are written to.
type ManifestConfig struct {
	BucketName   string `validate:"required"`
	EventDataKey string `validate:"required"`
	SongDataKey  string `validate:"required"`
}

// DataSetConfig describes the source dataset bucket and the prefix/regex
// filters applied during object discovery.
type DataSetConfig struct {
	BucketName         string `validate:"required"`
	SongDataPrefix     string `validate:"required"`
	SongDataPattern    *regexp.Regexp
	LogDataPrefix      string `validate:"required"`
	LogDataPattern     *regexp.Regexp
	LogDataJSONPathKey string `validate:"required"`
}

// ClusterConfig holds the Redshift cluster sizing, identity and database
// credentials.
type ClusterConfig struct {
	DBName            string `validate:"required"`
	DBUser            string `validate:"required"`
	DBPassword        string `validate:"required"`
	DBPort            int    `validate:"required,min=1,max=65535"`
	ClusterType       string `validate:"required"`
	NumNodes          int    `validate:"required,min=1"`
	NodeType          string `validate:"required"`
	ClusterIdentifier string `validate:"required"`
	IAMRoleName       string `validate:"required"`
}

// Config is the immutable root configuration for every entry point.
type Config struct {
	Region   string `validate:"required"`
	Manifest ManifestConfig
	DataSet  DataSetConfig
	Cluster  ClusterConfig
}

// Load reads the INI file at path and resolves the full configuration.
// region comes from the ambient AWS config resolved by the caller.
func Load(path, region string) (*Config, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, apperrors.NewConfig(fmt.Sprintf("read config file %s", path), err)
	}

	manifestSec := file.Section("MANIFEST")
	dataSetSec := file.Section("DATA_SET")
	clusterSec := file.Section("CLUSTER")

	dbPort, err := clusterSec.Key("DB_PORT").Int()
	if err != nil {
		return nil, apperrors.NewConfig("CLUSTER.DB_PORT must be an integer", err)
	}
	numNodes, err := clusterSec.Key("NUM_NODES").Int()
	if err != nil {
		return nil, apperrors.NewConfig("CLUSTER.NUM_NODES must be an integer", err)
	}

	songPattern, err := compilePattern(dataSetSec, "SONG_DATA_REGEX_PATTERN")
	if err != nil {
		return nil, err
	}
	logPattern, err := compilePattern(dataSetSec, "LOG_DATA_REGEX_PATTERN")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Region: region,
		Manifest: ManifestConfig{
			BucketName:   manifestSec.Key("BUCKET_NAME").String(),
			EventDataKey: manifestSec.Key("EVENT_DATA_KEY").String(),
			SongDataKey:  manifestSec.Key("SONG_DATA_KEY").String(),
		},
		DataSet: DataSetConfig{
			BucketName:         dataSetSec.Key("BUCKET_NAME").String(),
			SongDataPrefix:     dataSetSec.Key("SONG_DATA_PREFIX").String(),
			SongDataPattern:    songPattern,
			LogDataPrefix:      dataSetSec.Key("LOG_DATA_PREFIX").String(),
			LogDataPattern:     logPattern,
			LogDataJSONPathKey: dataSetSec.Key("LOG_DATA_JSON_PATH_KEY").String(),
		},
		Cluster: ClusterConfig{
			DBName:            clusterSec.Key("DB_NAME").String(),
			DBUser:            clusterSec.Key("DB_USER").String(),
			DBPassword:        clusterSec.Key("DB_PASSWORD").String(),
			DBPort:            dbPort,
			ClusterType:       clusterSec.Key("CLUSTER_TYPE").String(),
			NumNodes:          numNodes,
			NodeType:          clusterSec.Key("NODE_TYPE").String(),
			ClusterIdentifier: clusterSec.Key("CLUSTER_IDENTIFIER").String(),
			IAMRoleName:       clusterSec.Key("IAM_ROLE_NAME").String(),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, apperrors.NewConfig("missing or malformed configuration", err)
	}

	return cfg, nil
}

func compilePattern(sec *ini.Section, name string) (*regexp.Regexp, error) {
	raw := sec.Key(name).String()
	if raw == "" {
		return nil, apperrors.NewConfig(fmt.Sprintf("DATA_SET.%s is required", name), nil)
	}
	pattern, err := regexp.Compile(raw)
	if err != nil {
		return nil, apperrors.NewConfig(fmt.Sprintf("DATA_SET.%s must compile", name), err)
	}
	return pattern, nil
}

// ConnString builds the libpq keyword/value connection string for the
// cluster database at the given endpoint.
// Ref: https://www.postgresql.org/docs/current/libpq-connect.html#LIBPQ-CONNSTRING
func (c *Config) ConnString(endpoint string) string {
	return fmt.Sprintf(
		"host=%s dbname=%s user=%s password=%s port=%d",
		endpoint,
		c.Cluster.DBName,
		c.Cluster.DBUser,
		c.Cluster.DBPassword,
		c.Cluster.DBPort,
	)
}
