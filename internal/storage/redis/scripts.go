package redis

const (
	// putSessionScript writes a session hash, sets its TTL and indexes it
	// by expiry time.
	putSessionScript = `
local session_key = KEYS[1]     -- eldflow:session:{sessionID}
local expiry_index = KEYS[2]    -- eldflow:sessions:expiry

local session_id = ARGV[1]
local driver_id = ARGV[2]
local email = ARGV[3]
local created_at = ARGV[4]
local last_activity = ARGV[5]
local expires_at = ARGV[6]
local expires_ms = tonumber(ARGV[7])
local ttl_ms = tonumber(ARGV[8])

if ttl_ms <= 0 then
  redis.call('DEL', session_key)
  redis.call('ZREM', expiry_index, session_id)
  return 'EXPIRED'
end

redis.call('HSET', session_key,
  'id', session_id,
  'driver_id', driver_id,
  'email', email,
  'created_at', created_at,
  'last_activity', last_activity,
  'expires_at', expires_at
)
redis.call('PEXPIRE', session_key, ttl_ms)
redis.call('ZADD', expiry_index, expires_ms, session_id)

return 'OK'
`

	// touchSessionScript updates last_activity only if the session is live.
	touchSessionScript = `
local session_key = KEYS[1]

if redis.call('EXISTS', session_key) == 0 then
  return 0
end

redis.call('HSET', session_key, 'last_activity', ARGV[1])
return 1
`

	// purgeExpiredScript drops index entries whose expiry has passed along
	// with any hash that outlived its TTL.
	purgeExpiredScript = `
local expiry_index = KEYS[1]
local prefix = ARGV[1]
local now_ms = ARGV[2]

local expired = redis.call('ZRANGEBYSCORE', expiry_index, '-inf', '(' .. now_ms)
for _, id in ipairs(expired) do
  redis.call('DEL', prefix .. id)
  redis.call('ZREM', expiry_index, id)
end

return #expired
`
)
