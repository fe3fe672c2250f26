package infra

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "condgate"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanRulesRefresh — консоль публикует сюда "refresh" после любого изменения правил.
	RedisChanRulesRefresh = RedisNamespace + ":rules:refresh"
)

// Сообщения в каналах
const (
	RedisMsgRefresh = "refresh"
)
