package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-community-board/internal/models"
)

const (
	// ChatSendDestination — адрес приёма сообщений чата от клиента.
	ChatSendDestination = "/app/chat/send"
	// roomTopicPrefix — топик рассылки сообщений комнаты: /topic/room/{roomId}.
	roomTopicPrefix = "/topic/room/"

	maxChatRunes = 2000
)

var (
	errBadChatPayload = errors.New("invalid chat payload")
	errEmptyContent   = errors.New("empty content")
	errContentTooLong = fmt.Errorf("content too long: max=%d chars", maxChatRunes)
)

// ChatSendRequest — тело SEND на /app/chat/send.
type ChatSendRequest struct {
	RoomID  int64  `json:"roomId"`
	Content string `json:"content"`
}

// ChatMessage — то, что получают подписчики комнаты.
type ChatMessage struct {
	ChatID     string    `json:"chatId"`
	RoomID     int64     `json:"roomId"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"content"`
	SendDate   time.Time `json:"sendDate"`
}

// RoomTopic возвращает топик комнаты.
func RoomTopic(roomID int64) string {
	return roomTopicPrefix + strconv.FormatInt(roomID, 10)
}

func parseChatSend(body []byte) (ChatSendRequest, error) {
	var in ChatSendRequest
	if err := json.Unmarshal(body, &in); err != nil {
		return ChatSendRequest{}, errBadChatPayload
	}
	if in.RoomID <= 0 {
		return ChatSendRequest{}, errBadChatPayload
	}

	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return ChatSendRequest{}, errEmptyContent
	}
	if utf8.RuneCountInString(in.Content) > maxChatRunes {
		return ChatSendRequest{}, errContentTooLong
	}

	return in, nil
}

// newChatMessage собирает сообщение от имени привязанного участника.
// Отправитель берётся только из соединения, не из тела кадра.
func newChatMessage(p models.Principal, in ChatSendRequest, now time.Time) ChatMessage {
	return ChatMessage{
		ChatID:     uuid.NewString(),
		RoomID:     in.RoomID,
		SenderID:   p.ID.String(),
		SenderName: p.DisplayName,
		Content:    in.Content,
		SendDate:   now.UTC(),
	}
}

// subscribable — клиент может подписываться только на брокерные префиксы.
func subscribable(dest string) bool {
	return strings.HasPrefix(dest, "/topic/") || strings.HasPrefix(dest, "/queue/")
}
