package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"time"

	"chat-app/internal/models"
	"chat-app/internal/repository"
	"chat-app/internal/ws"
)

var (
	ErrEmptyMessage    = errors.New("text or image is required")
	ErrUploadsDisabled = errors.New("image uploads are not configured")
)

// Deliverer routes an event to one connected recipient; a disconnected
// recipient is silently skipped. Satisfied by *ws.Hub.
type Deliverer interface {
	Deliver(recipientID string, evt ws.Event)
}

// ImageUploader stores an uploaded file and returns its public URL.
// Satisfied by *database.MinIOClient.
type ImageUploader interface {
	UploadImage(ctx context.Context, prefix string, file *multipart.FileHeader) (string, error)
}

// MessagePublisher emits persisted messages to the audit stream.
// Satisfied by *events.Producer.
type MessagePublisher interface {
	PublishMessage(msg *models.Message) error
}

type MessageService struct {
	messages  repository.MessageRepository
	users     repository.UserRepository
	uploader  ImageUploader    // nil disables image messages
	publisher MessagePublisher // nil disables the audit stream
	hub       Deliverer
}

func NewMessageService(
	messages repository.MessageRepository,
	users repository.UserRepository,
	uploader ImageUploader,
	publisher MessagePublisher,
	hub Deliverer,
) *MessageService {
	return &MessageService{
		messages:  messages,
		users:     users,
		uploader:  uploader,
		publisher: publisher,
		hub:       hub,
	}
}

// UsersForSidebar returns every other user, for the roster view.
func (s *MessageService) UsersForSidebar(ctx context.Context, userID string) ([]models.UserResponse, error) {
	users, err := s.users.ListExcept(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	responses := make([]models.UserResponse, 0, len(users))
	for _, u := range users {
		responses = append(responses, u.ToResponse())
	}
	return responses, nil
}

// Conversation returns the full history between the requester and a peer.
func (s *MessageService) Conversation(ctx context.Context, userID, peerID string) ([]models.Message, error) {
	return s.messages.Conversation(ctx, userID, peerID)
}

// Send persists a message and then pushes it to the receiver's live
// connection, if any. The push happens strictly after the insert succeeds;
// push failures are swallowed because the stored record is the source of
// truth and the receiver fetches history on next selection anyway.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID, text string, image *multipart.FileHeader) (*models.Message, error) {
	if text == "" && image == nil {
		return nil, ErrEmptyMessage
	}

	var imageURL string
	if image != nil {
		if s.uploader == nil {
			return nil, ErrUploadsDisabled
		}
		url, err := s.uploader.UploadImage(ctx, "messages", image)
		if err != nil {
			return nil, fmt.Errorf("upload image: %w", err)
		}
		imageURL = url
	}

	msg := &models.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		Image:      imageURL,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.messages.Insert(ctx, msg); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishMessage(msg); err != nil {
			slog.Error("publishing message event", "messageID", msg.ID.Hex(), "error", err)
		}
	}

	evt, err := ws.NewMessageEvent(ws.MessagePayload{
		ID:         msg.ID.Hex(),
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Text:       msg.Text,
		Image:      msg.Image,
		CreatedAt:  msg.CreatedAt,
	})
	if err != nil {
		slog.Error("building newMessage event", "messageID", msg.ID.Hex(), "error", err)
		return msg, nil
	}
	s.hub.Deliver(receiverID, evt)

	return msg, nil
}
