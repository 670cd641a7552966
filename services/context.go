package services

import (
	"fmt"

	"github.com/CenterForOpenScience/pigeon-services/archive"
	"github.com/CenterForOpenScience/pigeon-services/models/common"
	"github.com/CenterForOpenScience/pigeon-services/network"
	"github.com/CenterForOpenScience/pigeon-services/util/logger"
	"github.com/op/go-logging"
)

// Context carries the config and the clients every worker and
// server shares.
type Context struct {
	ArchiveClient  *network.ArchiveClient
	Config         *common.Config
	DataCiteClient *network.DataCiteClient
	LogFile        string
	Logger         *logging.Logger
	NSQClient      *network.NSQClient
	RedisClient    *network.RedisClient
	RegistryClient *network.RegistryClient
}

// NewContext builds the shared clients from config. It panics if a
// client can't be created, since no process can run without them.
func NewContext(config *common.Config) *Context {
	_logger, logFile := getLogger(config)
	return &Context{
		ArchiveClient:  getArchiveClient(config, _logger),
		Config:         config,
		DataCiteClient: getDataCiteClient(config, _logger),
		LogFile:        logFile,
		Logger:         _logger,
		NSQClient:      network.NewNSQClient(config.NsqURL),
		RedisClient:    getRedisClient(config),
		RegistryClient: getRegistryClient(config, _logger),
	}
}

// Archiver returns an Archiver wired to this context's clients.
func (c *Context) Archiver() *archive.Archiver {
	return archive.NewArchiver(c.Config, c.RegistryClient, c.DataCiteClient, c.ArchiveClient, c.Logger)
}

func getLogger(config *common.Config) (*logging.Logger, string) {
	_logger, filename, err := logger.InitLogger(config.LogDir, config.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("Could not initialize logger: %v", err))
	}
	_logger.Infof("Logging to %s", filename)
	return _logger, filename
}

func getRedisClient(config *common.Config) *network.RedisClient {
	return network.NewRedisClient(
		config.RedisURL,
		config.RedisPassword,
		config.RedisDefaultDB)
}

func getRegistryClient(config *common.Config, logger *logging.Logger) *network.RegistryClient {
	return network.NewRegistryClient(network.RegistryClientOptions{
		APIURL:          config.OSFAPIURL,
		FilesURL:        config.OSFFilesURL,
		Token:           config.OSFBearerToken,
		PageConcurrency: config.PageConcurrency,
		MaxPages:        config.MaxPages,
		ThrottleRPS:     config.ThrottleRPS,
		Timeout:         config.HTTPTimeout,
		Retry: network.RetryPolicy{
			MaxAttempts: config.RateLimitMaxRetries,
			DefaultWait: config.RateLimitDefaultWait,
			MaxWait:     config.RateLimitMaxWait,
		},
	}, logger)
}

func getDataCiteClient(config *common.Config, logger *logging.Logger) *network.DataCiteClient {
	return network.NewDataCiteClient(
		config.DataCiteURL,
		config.DataCiteUsername,
		config.DataCitePassword,
		config.HTTPTimeout,
		logger)
}

func getArchiveClient(config *common.Config, logger *logging.Logger) *network.ArchiveClient {
	client, err := network.NewArchiveClient(network.ArchiveClientOptions{
		S3Host:      config.IAS3Host,
		UseSSL:      config.IAUseSSL,
		Region:      config.IARegion,
		MetadataURL: config.IAMetadataURL,
		DetailsURL:  config.IADetailsURL,
		AccessKey:   config.IAAccessKey,
		SecretKey:   config.IASecretKey,
		Timeout:     config.HTTPTimeout,
	}, logger)
	if err != nil {
		panic(fmt.Sprintf("Could not initialize archive client: %v", err))
	}
	return client
}
