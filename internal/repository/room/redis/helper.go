package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

func (r repo) appendOnce(ctx context.Context, c redis.Scripter, key string, value any) {
	c.EvalSha(ctx, r.appendOnceScript, []string{key}, value)
}

// hSetIfExists writes fields only when key already exists and reports whether it did.
func (r repo) hSetIfExists(ctx context.Context, key string, fieldsAndValues ...any) (bool, error) {
	res, err := r.rc.EvalSha(ctx, r.hSetIfExistsScript, []string{key}, fieldsAndValues...).Int()
	if err != nil {
		return false, err
	}

	return res == 1, nil
}

func (r repo) executePipe(ctx context.Context, pipe redis.Pipeliner) error {
	cmds, err := pipe.Exec(ctx)
	if err != nil {
		for _, cmd := range cmds {
			if err := cmd.Err(); err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
		}

		if errors.Is(err, redis.Nil) {
			return nil
		}

		return err
	}

	return nil
}

func (r repo) expireRoom(ctx context.Context, pipe redis.Pipeliner, roomId string) {
	pipe.Expire(ctx, r.getRoomKey(roomId), r.expireDuration)
	pipe.Expire(ctx, r.getPlayerKey(roomId), r.expireDuration)
	pipe.Expire(ctx, r.getParticipantListKey(roomId), r.expireDuration)
	pipe.Expire(ctx, r.getKickedKey(roomId), r.expireDuration)
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
