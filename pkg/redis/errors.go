package redis

import "errors"

var (
	ErrEmptyConnectionURL           = errors.New("empty redis connection URL, set REDIS_URL")
	ErrFailedToParseRedisConnString = errors.New("failed to parse redis connection string")
	ErrRedisNotReady                = errors.New("redis did not answer within the retry budget")
	ErrHealthcheckFailed            = errors.New("redis healthcheck failed")
)
