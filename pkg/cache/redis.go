package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"quiz-classroom/internal/models"
)

const activityTTL = 24 * time.Hour

// ErrMiss is returned when a key is not cached.
var ErrMiss = redis.Nil

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// NewClient connects to the redis server at addr.
func NewClient(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
}

func activityKey(teacherID, activityID string) string {
	return "activity:" + teacherID + ":" + activityID
}

func (c *RedisCache) SetActivity(ctx context.Context, activity *models.Activity) error {
	data, err := json.Marshal(activity)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, activityKey(activity.TeacherID, activity.ID), data, activityTTL).Err()
}

func (c *RedisCache) GetActivity(ctx context.Context, teacherID, activityID string) (*models.Activity, error) {
	data, err := c.client.Get(ctx, activityKey(teacherID, activityID)).Bytes()
	if err != nil {
		return nil, err
	}

	var activity models.Activity
	err = json.Unmarshal(data, &activity)
	return &activity, err
}

func (c *RedisCache) InvalidateActivity(ctx context.Context, teacherID, activityID string) error {
	return c.client.Del(ctx, activityKey(teacherID, activityID)).Err()
}
