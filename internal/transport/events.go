package transport

import (
	"encoding/json"

	"github.com/vraj-wappnet/freelance-chat/internal/types"
)

// Event names on the messaging socket.
const (
	EventJoin              = "join"
	EventJoinConversation  = "joinConversation"
	EventStartConversation = "startConversation"
	EventSendMessage       = "sendMessage"
	EventUpdateMessage     = "updateMessage"
	EventDeleteMessage     = "deleteMessage"
	EventTyping            = "typing"

	EventConversationStarted = "conversationStarted"
	EventReceiveMessage      = "receiveMessage"
	EventMessageUpdated      = "messageUpdated"
	EventMessageDeleted      = "messageDeleted"
	EventUserStatus          = "userStatus"
	EventError               = "error"
)

// Envelope frames every message on the socket: an event name plus its
// payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type JoinConversation struct {
	Room string `json:"room"`
}

type StartConversation struct {
	UserId      string `json:"userId"`
	RecipientId string `json:"recipientId"`
}

type SendMessage struct {
	UserId           string              `json:"userId"`
	CreateMessageDto types.CreateMessage `json:"createMessageDto"`
}

type UpdateMessage struct {
	UserId           string              `json:"userId"`
	MessageId        string              `json:"messageId"`
	UpdateMessageDto types.MessageUpdate `json:"updateMessageDto"`
}

type DeleteMessage struct {
	UserId    string `json:"userId"`
	MessageId string `json:"messageId"`
}

type Typing struct {
	UserId      string `json:"userId"`
	RecipientId string `json:"recipientId,omitempty"`
}

type ConversationStarted struct {
	InitiatorId string `json:"initiatorId"`
}

type MessageDeleted struct {
	MessageId string `json:"messageId"`
}

type UserStatus struct {
	UserId string               `json:"userId"`
	Status types.PresenceStatus `json:"status"`
}

type socketError struct {
	Message string `json:"message"`
}
