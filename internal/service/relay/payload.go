package relay

import "strings"

// TriggerAfterMessage is the only event the relay answers
const TriggerAfterMessage = "after_message"

// ReceiverTypeGroup marks a message sent to a group rather than a user
const ReceiverTypeGroup = "group"

// Payload is the chat platform's webhook body
type Payload struct {
	Trigger string      `json:"trigger"`
	Data    MessageData `json:"data"`
	AppID   string      `json:"appId"`
	Region  string      `json:"region"`
}

// MessageData is the inbound message the event carries
type MessageData struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversationId"`
	Sender         string      `json:"sender"`
	Receiver       string      `json:"receiver"`
	ReceiverType   string      `json:"receiverType"`
	Category       string      `json:"category"`
	Type           string      `json:"type"`
	Data           MessageBody `json:"data"`
	SentAt         int64       `json:"sentAt"`
}

// MessageBody holds the message content
type MessageBody struct {
	Text string `json:"text"`
}

// replyTarget returns who the bot answers: the group for group messages, otherwise the sender
func (m MessageData) replyTarget() (receiver, receiverType string) {
	receiverType = strings.ToLower(m.ReceiverType)
	if receiverType == ReceiverTypeGroup {
		return m.Receiver, receiverType
	}
	if receiverType == "" {
		receiverType = "user"
	}
	return m.Sender, receiverType
}
