package common

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/CenterForOpenScience/pigeon-services/constants"
	"github.com/CenterForOpenScience/pigeon-services/util"
	"github.com/op/go-logging"
	"github.com/spf13/viper"
)

type Config struct {
	ArtifactConcurrency  int
	ConfigName           string
	DataCitePassword     string
	DataCiteURL          string
	DataCiteUsername     string
	HTTPTimeout          time.Duration
	IAAccessKey          string
	IADetailsURL         string
	IALocateRetries      int
	IALocateRetryMs      time.Duration
	IAMetadataURL        string
	IARegion             string
	IAS3Host             string
	IASecretKey          string
	IAUseSSL             bool
	IDVersion            string
	LogDir               string
	LogLevel             logging.Level
	NsqLookupd           string
	NsqURL               string
	OSFAPIURL            string
	OSFBearerToken       string
	OSFFilesURL          string
	MaxPages             int
	PageConcurrency      int
	PageSize             int
	ProviderIDTemplate   string
	Publisher            string
	RateLimitDefaultWait time.Duration
	RateLimitMaxRetries  int
	RateLimitMaxWait     time.Duration
	RedisDefaultDB       int
	RedisPassword        string
	RedisURL             string
	RegIDTemplate        string
	ServerHost           string
	ServerPort           int
	StagingDir           string
	ThrottleRPS          float64
}

var logLevels = map[string]logging.Level{
	"CRITICAL": logging.CRITICAL,
	"ERROR":    logging.ERROR,
	"WARNING":  logging.WARNING,
	"NOTICE":   logging.NOTICE,
	"INFO":     logging.INFO,
	"DEBUG":    logging.DEBUG,
}

// NewConfig returns a config loaded from $PIGEON_CONFIG_DIR/.env.$PIGEON_ENV.
// It panics if the settings can't be read, since nothing works
// without them.
func NewConfig() *Config {
	configDir, envName := getEnvVars()
	config, err := LoadConfig(configDir, envName)
	if err != nil {
		panic(err)
	}
	return config
}

// LoadConfig reads the .env.<envName> file in configDir. Environment
// variables override values in the file.
func LoadConfig(configDir, envName string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(configDir)
	v.SetConfigName(".env." + envName)
	v.SetConfigType("env")
	v.AutomaticEnv()
	setDefaults(v)
	err := v.ReadInConfig()
	if err != nil {
		return nil, fmt.Errorf("Fatal error config file: %w", err)
	}
	config := &Config{
		ArtifactConcurrency:  v.GetInt("ARTIFACT_CONCURRENCY"),
		ConfigName:           envName,
		DataCitePassword:     v.GetString("DATACITE_PASSWORD"),
		DataCiteURL:          v.GetString("DATACITE_URL"),
		DataCiteUsername:     v.GetString("DATACITE_USERNAME"),
		HTTPTimeout:          v.GetDuration("HTTP_TIMEOUT"),
		IAAccessKey:          v.GetString("IA_ACCESS_KEY"),
		IADetailsURL:         v.GetString("IA_DETAILS_URL"),
		IALocateRetries:      v.GetInt("IA_LOCATE_RETRIES"),
		IALocateRetryMs:      time.Duration(v.GetInt("IA_LOCATE_RETRY_MS")) * time.Millisecond,
		IAMetadataURL:        v.GetString("IA_METADATA_URL"),
		IARegion:             v.GetString("IA_REGION"),
		IAS3Host:             v.GetString("IA_S3_HOST"),
		IASecretKey:          v.GetString("IA_SECRET_KEY"),
		IAUseSSL:             v.GetBool("IA_USE_SSL"),
		IDVersion:            v.GetString("ID_VERSION"),
		LogDir:               v.GetString("LOG_DIR"),
		LogLevel:             logLevels[strings.ToUpper(v.GetString("LOG_LEVEL"))],
		NsqLookupd:           v.GetString("NSQ_LOOKUPD"),
		NsqURL:               v.GetString("NSQ_URL"),
		OSFAPIURL:            v.GetString("OSF_API_URL"),
		OSFBearerToken:       v.GetString("OSF_BEARER_TOKEN"),
		OSFFilesURL:          v.GetString("OSF_FILES_URL"),
		MaxPages:             v.GetInt("OSF_MAX_PAGES"),
		PageConcurrency:      v.GetInt("OSF_PAGE_CONCURRENCY"),
		PageSize:             v.GetInt("OSF_PAGE_SIZE"),
		ProviderIDTemplate:   v.GetString("PROVIDER_ID_TEMPLATE"),
		Publisher:            v.GetString("PUBLISHER"),
		RateLimitDefaultWait: v.GetDuration("OSF_RATE_LIMIT_DEFAULT_WAIT"),
		RateLimitMaxRetries:  v.GetInt("OSF_RATE_LIMIT_MAX_RETRIES"),
		RateLimitMaxWait:     v.GetDuration("OSF_RATE_LIMIT_MAX_WAIT"),
		RedisDefaultDB:       v.GetInt("REDIS_DEFAULT_DB"),
		RedisPassword:        v.GetString("REDIS_PASSWORD"),
		RedisURL:             v.GetString("REDIS_URL"),
		RegIDTemplate:        v.GetString("REG_ID_TEMPLATE"),
		ServerHost:           v.GetString("HOST"),
		ServerPort:           v.GetInt("PORT"),
		StagingDir:           v.GetString("STAGING_DIR"),
		ThrottleRPS:          v.GetFloat64("OSF_THROTTLE_RPS"),
	}
	if err = config.expandPaths(); err != nil {
		return nil, err
	}
	if err = config.sanityCheck(); err != nil {
		return nil, err
	}
	if err = config.makeDirs(); err != nil {
		return nil, err
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ARTIFACT_CONCURRENCY", 4)
	v.SetDefault("HTTP_TIMEOUT", "5m")
	v.SetDefault("IA_DETAILS_URL", "https://archive.org/details/")
	v.SetDefault("IA_LOCATE_RETRIES", 3)
	v.SetDefault("IA_LOCATE_RETRY_MS", 5000)
	v.SetDefault("IA_METADATA_URL", "https://archive.org/metadata/")
	v.SetDefault("IA_REGION", "us-east-1")
	v.SetDefault("IA_S3_HOST", "s3.us.archive.org")
	v.SetDefault("IA_USE_SSL", true)
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("OSF_MAX_PAGES", 1000)
	v.SetDefault("OSF_PAGE_CONCURRENCY", 4)
	v.SetDefault("OSF_PAGE_SIZE", 100)
	v.SetDefault("OSF_RATE_LIMIT_DEFAULT_WAIT", "5s")
	v.SetDefault("OSF_RATE_LIMIT_MAX_RETRIES", 10)
	v.SetDefault("OSF_RATE_LIMIT_MAX_WAIT", "5m")
	v.SetDefault("PORT", 2020)
	v.SetDefault("PROVIDER_ID_TEMPLATE", "osf-registration-providers-{provider_id}-{version}")
	v.SetDefault("PUBLISHER", constants.DefaultPublisher)
	v.SetDefault("REG_ID_TEMPLATE", "osf-registrations-{guid}-{version}")
}

func getEnvVars() (string, string) {
	configDir := getRequiredEnvVar("PIGEON_CONFIG_DIR")
	envName := getRequiredEnvVar("PIGEON_ENV")
	return configDir, envName
}

func getRequiredEnvVar(varName string) string {
	value := os.Getenv(varName)
	if value == "" {
		panic(fmt.Sprintf("Required env var %s not set", varName))
	}
	return value
}

// Expand ~ to home dir in path settings.
func (c *Config) expandPaths() (err error) {
	if c.LogDir, err = util.ExpandTilde(c.LogDir); err != nil {
		return err
	}
	c.StagingDir, err = util.ExpandTilde(c.StagingDir)
	return err
}

func (c *Config) sanityCheck() error {
	required := map[string]string{
		"OSF_API_URL":   c.OSFAPIURL,
		"OSF_FILES_URL": c.OSFFilesURL,
		"ID_VERSION":    c.IDVersion,
		"STAGING_DIR":   c.StagingDir,
		"LOG_DIR":       c.LogDir,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("Config setting %s cannot be empty", name)
		}
	}
	if !strings.Contains(c.RegIDTemplate, constants.TemplateGUID) {
		return fmt.Errorf("REG_ID_TEMPLATE must contain %s", constants.TemplateGUID)
	}
	if _, err := url.Parse(c.OSFAPIURL); err != nil {
		return fmt.Errorf("OSF_API_URL is not a valid URL: %w", err)
	}
	// Dev and test configs may not write to the real archive.
	if (c.ConfigName == "dev" || c.ConfigName == "test") &&
		strings.HasSuffix(c.IAS3Host, "archive.org") && c.IAAccessKey != "" {
		return fmt.Errorf("Config %s cannot point at %s", c.ConfigName, c.IAS3Host)
	}
	return nil
}

func (c *Config) makeDirs() error {
	for _, dir := range []string{c.LogDir, c.StagingDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// ItemIdentifier returns the archive item identifier for the
// registration with the given guid.
func (c *Config) ItemIdentifier(guid string) string {
	return ItemIdentifier(c.RegIDTemplate, guid, c.IDVersion)
}

// ProviderIdentifier returns the archive collection for a
// registration provider.
func (c *Config) ProviderIdentifier(providerID string) string {
	return util.FillTemplate(c.ProviderIDTemplate, map[string]string{
		"provider_id": providerID,
		"version":     c.IDVersion,
	})
}

// DetailsURL returns the public archive page for an item.
func (c *Config) DetailsURL(itemID string) string {
	return strings.TrimRight(c.IADetailsURL, "/") + "/" + itemID
}

// ItemIdentifier fills in template with the guid and the id version.
// The same inputs always produce the same identifier.
func ItemIdentifier(template, guid, version string) string {
	return util.FillTemplate(template, map[string]string{
		"guid":    guid,
		"version": version,
	})
}
