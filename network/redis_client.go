package network

import (
	"fmt"

	"github.com/CenterForOpenScience/pigeon-services/constants"
	"github.com/CenterForOpenScience/pigeon-services/models/service"
	"github.com/go-redis/redis/v7"
)

// RedisClient stores job results. Each registration gets one hash,
// pigeon:<guid>, with one field per operation.
type RedisClient struct {
	client *redis.Client
}

func NewRedisClient(address, password string, db int) *RedisClient {
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr:     address,
			Password: password,
			DB:       db,
		}),
	}
}

func (c *RedisClient) Ping() (string, error) {
	return c.client.Ping().Result()
}

func jobKey(guid string) string {
	return constants.RedisKeyPrefix + guid
}

// JobResultGet returns the result of the last operation run for guid,
// or redis.Nil if there isn't one.
func (c *RedisClient) JobResultGet(guid, operation string) (*service.JobResult, error) {
	data, err := c.client.HGet(jobKey(guid), operation).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, err
		}
		return nil, fmt.Errorf("JobResultGet (%s, %s): %s", guid, operation, err.Error())
	}
	return service.JobResultFromJSON(data)
}

// JobResultsForGUID returns all stored results for guid, keyed by
// operation name.
func (c *RedisClient) JobResultsForGUID(guid string) (map[string]*service.JobResult, error) {
	fields, err := c.client.HGetAll(jobKey(guid)).Result()
	if err != nil {
		return nil, fmt.Errorf("JobResultsForGUID (%s): %s", guid, err.Error())
	}
	results := make(map[string]*service.JobResult, len(fields))
	for operation, data := range fields {
		result, err := service.JobResultFromJSON(data)
		if err != nil {
			return nil, fmt.Errorf("JobResultsForGUID (%s, %s): %s", guid, operation, err.Error())
		}
		results[operation] = result
	}
	return results, nil
}

func (c *RedisClient) JobResultSave(result *service.JobResult) error {
	jsonData, err := result.ToJSON()
	if err != nil {
		return err
	}
	_, err = c.client.HSet(jobKey(result.GUID), result.Operation, jsonData).Result()
	return err
}

func (c *RedisClient) JobResultDelete(guid, operation string) error {
	_, err := c.client.HDel(jobKey(guid), operation).Result()
	return err
}

// KeysMatching returns keys matching pattern. Use only in tests
// and admin tools; KEYS blocks the server on big databases.
func (c *RedisClient) KeysMatching(pattern string) ([]string, error) {
	return c.client.Keys(pattern).Result()
}

func (c *RedisClient) Close() error {
	return c.client.Close()
}
