package common

const (
	RedisStreamForecastRun = "forecast.run"

	RedisStreamGroup    = "forecaster-group"
	RedisStreamConsumer = "forecaster-consumer"
)
