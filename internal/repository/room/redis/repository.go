package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type repo struct {
	rc                 *redis.Client
	logger             *slog.Logger
	appendOnceScript   string
	setPlayerScript    string
	hSetIfExistsScript string
	expireDuration     time.Duration
}

func NewRepo(rc *redis.Client, logger *slog.Logger, expireDuration time.Duration) *repo {
	return &repo{
		rc:     rc,
		logger: logger,
		// appends ARGV[1] to the sorted set with the next score, keeping the
		// original position of members that are already present
		appendOnceScript: rc.ScriptLoad(context.Background(), `
			if redis.call('ZSCORE', KEYS[1], ARGV[1]) then
				return 0
			end
			local maxScore = redis.call('ZREVRANGE', KEYS[1], 0, 0, 'WITHSCORES')
			local nextScore = 1
			if #maxScore > 0 then
				nextScore = tonumber(maxScore[2]) + 1
			end
			redis.call('ZADD', KEYS[1], nextScore, ARGV[1])
			return nextScore
		`).Val(),
		// ARGV: now_ms, state, time, video_url, video_title, playlist_id, expire_seconds
		setPlayerScript: rc.ScriptLoad(context.Background(), `
			local prev = tonumber(redis.call('HGET', KEYS[1], 'updated_at') or '0')
			local updatedAt = tonumber(ARGV[1])
			if updatedAt <= prev then
				updatedAt = prev + 1
			end
			redis.call('HSET', KEYS[1], 'state', ARGV[2], 'time', ARGV[3], 'updated_at', string.format('%d', updatedAt))
			local fields = {'video_url', 'video_title', 'playlist_id'}
			for i, field in ipairs(fields) do
				local value = ARGV[3 + i]
				if value == '' then
					redis.call('HDEL', KEYS[1], field)
				else
					redis.call('HSET', KEYS[1], field, value)
				end
			end
			redis.call('EXPIRE', KEYS[1], ARGV[7])
			return updatedAt
		`).Val(),
		hSetIfExistsScript: rc.ScriptLoad(context.Background(), `
			if redis.call('EXISTS', KEYS[1]) == 0 then
				return 0
			end
			redis.call('HSET', KEYS[1], unpack(ARGV))
			return 1
		`).Val(),
		expireDuration: expireDuration,
	}
}
