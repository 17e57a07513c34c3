package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/approval-router/internal/integration"
)

// sseHeartbeatInterval 心跳间隔,防止代理断开空闲连接
var sseHeartbeatInterval = 30 * time.Second

// SSEHandler 通知推送 SSE 入口
// 必须挂在认证中间件之后,与 WebSocket 推送同样的消息
func SSEHandler(broker *integration.StreamBroker) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetInt64("user_id")
		if userID <= 0 {
			Error(c, http.StatusUnauthorized, T(c, "error.unauthorized"), "")
			return
		}

		flusher, ok := c.Writer.(http.Flusher)
		if !ok {
			Error(c, http.StatusInternalServerError, T(c, "error.internal_error"), "streaming not supported")
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no") // 禁用 Nginx 缓冲
		c.Status(http.StatusOK)

		messages, cancel := broker.Subscribe(userID)
		defer cancel()

		connected, _ := json.Marshal(gin.H{
			"type":    "connected",
			"user_id": userID,
			"time":    time.Now().Unix(),
		})
		if err := sendSSEMessage(c.Writer, connected); err != nil {
			return
		}
		flusher.Flush()

		ticker := time.NewTicker(sseHeartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-c.Request.Context().Done():
				return
			case <-ticker.C:
				heartbeat, _ := json.Marshal(gin.H{"type": "heartbeat", "time": time.Now().Unix()})
				if err := sendSSEMessage(c.Writer, heartbeat); err != nil {
					return
				}
				flusher.Flush()
			case message, ok := <-messages:
				if !ok {
					return
				}
				if err := sendSSEMessage(c.Writer, message); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

// sendSSEMessage 发送 SSE 消息,格式为 data: <json>\n\n
func sendSSEMessage(w io.Writer, data []byte) error {
	_, err := fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
