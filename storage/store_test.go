package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seekchat/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func encode(t *testing.T, bs model.ContentBlocks) string {
	t.Helper()
	s, err := bs.Encode()
	require.NoError(t, err)
	return s
}

// tick makes the store clock advance one second per call.
func tick(s *Store) {
	base := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	s.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func TestOpenCreatesDefaultSession(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, nil)
	require.NoError(t, err)

	sessions, err := s.ListSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, DefaultSessionName, sessions[0].Name)
	require.NoError(t, s.Close())

	// Reopening does not add another default session.
	s, err = OpenPath(filepath.Join(dir, "chat.db"), nil)
	require.NoError(t, err)
	defer s.Close()
	sessions, err = s.ListSessions(context.Background())
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestSessionCRUD(t *testing.T) {
	s := openTestStore(t)
	tick(s)
	ctx := context.Background()

	a, err := s.CreateSession(ctx, "A")
	require.NoError(t, err)
	b, err := s.CreateSession(ctx, "B")
	require.NoError(t, err)

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, b.ID, sessions[0].ID, "most recently updated first")

	require.NoError(t, s.RenameSession(ctx, a.ID, "Renamed"))
	require.NoError(t, s.UpdateSessionMetadata(ctx, a.ID, `{"temperature":0.2}`))

	got, err := s.GetSession(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, `{"temperature":0.2}`, got.Metadata)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))

	require.NoError(t, s.DeleteSession(ctx, b.ID))
	_, err = s.GetSession(ctx, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.RenameSession(ctx, b.ID, "x"), ErrNotFound)
	assert.ErrorIs(t, s.DeleteSession(ctx, b.ID), ErrNotFound)
}

func TestMessages(t *testing.T) {
	s := openTestStore(t)
	tick(s)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "chat")
	require.NoError(t, err)

	user, err := s.AddMessage(ctx, model.StoredMessage{
		SessionID: sess.ID,
		Role:      model.RoleUser,
		Content:   encode(t, model.ContentBlocks{model.NewBlock(model.BlockContent, "hello", model.StatusSuccess)}),
		Status:    model.StatusSuccess,
	})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())

	reply, err := s.AddMessage(ctx, model.StoredMessage{
		SessionID:  sess.ID,
		Role:       model.RoleAssistant,
		ProviderID: "openai",
		ModelID:    "gpt-4o",
		Content:    encode(t, model.AssistantBlocks("", "", nil, model.StatusPending)),
		Status:     model.StatusPending,
	})
	require.NoError(t, err)

	require.NoError(t, s.UpdateMessageContent(ctx, reply.ID,
		encode(t, model.AssistantBlocks("Hi there", "", nil, model.StatusSuccess))))
	require.NoError(t, s.UpdateMessageStatus(ctx, reply.ID, model.StatusSuccess))

	messages, err := s.GetMessages(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, user.ID, messages[0].ID)
	assert.Equal(t, "hello", messages[0].Blocks().Text())
	assert.Equal(t, model.StatusSuccess, messages[1].Status)
	assert.Equal(t, "Hi there", messages[1].Blocks().Text())
	assert.Equal(t, "openai", messages[1].ProviderID)

	got, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, messages[1].CreatedAt, got.UpdatedAt, "adding a message touches the session")

	require.NoError(t, s.DeleteMessage(ctx, user.ID))
	assert.ErrorIs(t, s.DeleteMessage(ctx, user.ID), ErrNotFound)
	assert.ErrorIs(t, s.UpdateMessageStatus(ctx, user.ID, model.StatusError), ErrNotFound)

	n, err := s.DeleteSessionMessages(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDeleteSessionCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "chat")
	require.NoError(t, err)
	_, err = s.AddMessage(ctx, model.StoredMessage{SessionID: sess.ID, Role: model.RoleUser, Content: "[]"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteSession(ctx, sess.ID))

	messages, err := s.GetMessages(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestGetMessagesOrdersByCreation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	sess, err := s.CreateSession(ctx, "chat")
	require.NoError(t, err)
	for _, role := range []string{model.RoleUser, model.RoleAssistant, model.RoleUser} {
		_, err := s.AddMessage(ctx, model.StoredMessage{SessionID: sess.ID, Role: role, Content: "[]"})
		require.NoError(t, err)
	}

	messages, err := s.GetMessages(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, []string{model.RoleUser, model.RoleAssistant, model.RoleUser},
		[]string{messages[0].Role, messages[1].Role, messages[2].Role}, "same timestamp falls back to id order")
}
