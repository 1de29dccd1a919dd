package redis

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// Publish 发布消息，非字符串和字节的值会编码为 JSON
func (c *Client) Publish(ctx context.Context, channel string, message interface{}) (int64, error) {
	var payload interface{}
	switch m := message.(type) {
	case string, []byte:
		payload = m
	default:
		data, err := json.Marshal(m)
		if err != nil {
			return 0, err
		}
		payload = data
	}

	receivers, err := c.rdb.Publish(ctx, channel, payload).Result()
	if err != nil {
		c.logger.Error("redis publish failed",
			zap.String("channel", channel),
			zap.Error(err),
		)
		return 0, err
	}

	return receivers, nil
}
