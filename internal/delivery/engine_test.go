package delivery

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/maulanarifai114/research-chat-backend/internal/models"
	"github.com/maulanarifai114/research-chat-backend/internal/registry"
)

type fakeUsers struct{ users map[string]*models.User }

func (f *fakeUsers) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return u, nil
}

type fakeConversations struct{ convs map[string]*models.Conversation }

func (f *fakeConversations) FindConversationWithMembers(ctx context.Context, id string) (*models.Conversation, error) {
	c, ok := f.convs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return c, nil
}

type fakeStore struct {
	inserted []*models.Message
	fail     error
}

func (f *fakeStore) InsertMessage(ctx context.Context, m *models.Message) (*models.Message, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	m.ID = fmt.Sprintf("m%d", len(f.inserted)+1)
	f.inserted = append(f.inserted, m)
	return m, nil
}

type fakeConn struct{ events []Event }

func (c *fakeConn) Send(v any) {
	c.events = append(c.events, v.(Event))
}

func user(id string) *models.User {
	return &models.User{ID: id, Name: "User " + id, Email: id + "@example.com", Role: models.RoleMember}
}

type fixture struct {
	engine *Engine
	store  *fakeStore
	reg    *registry.Registry
}

func newFixture(users []*models.User, convs ...*models.Conversation) *fixture {
	um := make(map[string]*models.User)
	for _, u := range users {
		um[u.ID] = u
	}
	cm := make(map[string]*models.Conversation)
	for _, c := range convs {
		cm[c.ID] = c
	}
	store := &fakeStore{}
	reg := registry.New()
	engine := NewEngine(&fakeUsers{users: um}, &fakeConversations{convs: cm}, store, reg, nil, zap.NewNop().Sugar())
	return &fixture{engine: engine, store: store, reg: reg}
}

func TestHandleMessage_GroupFanout(t *testing.T) {
	req := require.New(t)

	// Given users A, B, C in group G, with A and C live and B offline
	fx := newFixture(
		[]*models.User{user("A"), user("B"), user("C")},
		&models.Conversation{ID: "G", Type: models.ConversationGroup, Members: []string{"A", "B", "C"}},
	)
	connA, connC := &fakeConn{}, &fakeConn{}
	fx.reg.Register("A", connA)
	fx.reg.Register("C", connC)

	// When A sends a message to G
	env, err := fx.engine.HandleMessage(context.Background(), Inbound{
		Sender: "A", Message: "hi", ConversationID: "G",
	})

	// Then one message is persisted with sender A
	req.NoError(err)
	req.Len(fx.store.inserted, 1)
	req.Equal("A", fx.store.inserted[0].SenderID)
	req.Equal("hi", fx.store.inserted[0].Text)

	// And C receives one push with the message and A's profile fragment
	req.Len(connC.events, 1)
	req.Equal("message", connC.events[0].Event)
	got := connC.events[0].Data.(*Envelope)
	req.Equal("hi", got.Message)
	req.Equal("A", got.Member.ID)
	req.Equal("User A", got.Member.Name)
	req.Equal("A@example.com", got.Member.Email)
	req.Equal(models.RoleMember, got.Member.Role)

	// And A receives exactly one echo of the same envelope
	req.Len(connA.events, 1)
	req.Equal(env, connA.events[0].Data)
}

func TestHandleMessage_PrivateDyadic(t *testing.T) {
	req := require.New(t)

	fx := newFixture(
		[]*models.User{user("A"), user("B")},
		&models.Conversation{ID: "P", Type: models.ConversationPrivate, Members: []string{"A", "B"}},
	)
	connA, connB := &fakeConn{}, &fakeConn{}
	fx.reg.Register("A", connA)
	fx.reg.Register("B", connB)

	_, err := fx.engine.HandleMessage(context.Background(), Inbound{
		Sender: "A", Message: "hello", ConversationID: "P",
	})

	req.NoError(err)
	// delivered to exactly B, echoed exactly once to A, never twice to either
	req.Len(connB.events, 1)
	req.Len(connA.events, 1)
}

func TestHandleMessage_FiveMemberGroup_SkipsUnreachable(t *testing.T) {
	req := require.New(t)

	members := []string{"S", "B", "C", "D", "E"}
	fx := newFixture(
		[]*models.User{user("S"), user("B"), user("C"), user("D"), user("E")},
		&models.Conversation{ID: "G5", Type: models.ConversationGroup, Members: members},
	)
	connS, connB, connC := &fakeConn{}, &fakeConn{}, &fakeConn{}
	fx.reg.Register("S", connS)
	fx.reg.Register("B", connB)
	fx.reg.Register("C", connC)
	// D and E are offline

	_, err := fx.engine.HandleMessage(context.Background(), Inbound{
		Sender: "S", Message: "all hands", ConversationID: "G5",
	})

	req.NoError(err)
	req.Len(fx.store.inserted, 1)
	req.Len(connB.events, 1)
	req.Len(connC.events, 1)
	req.Len(connS.events, 1)
}

func TestHandleMessage_AttachmentOnly(t *testing.T) {
	req := require.New(t)

	fx := newFixture(
		[]*models.User{user("A"), user("B")},
		&models.Conversation{ID: "P", Type: models.ConversationPrivate, Members: []string{"A", "B"}},
	)
	connA, connB := &fakeConn{}, &fakeConn{}
	fx.reg.Register("A", connA)
	fx.reg.Register("B", connB)

	_, err := fx.engine.HandleMessage(context.Background(), Inbound{
		Sender: "A", Attachment: "files/report.pdf", ConversationID: "P",
	})

	req.NoError(err)
	req.Len(fx.store.inserted, 1)
	req.Empty(fx.store.inserted[0].Text)
	req.Equal("files/report.pdf", fx.store.inserted[0].Attachment)
	req.Len(connB.events, 1)
	req.Len(connA.events, 1)
}

func TestHandleMessage_TwoMemberGroupRoutedByType(t *testing.T) {
	req := require.New(t)

	// A two-member GROUP is still a group: routing branches on the
	// declared type, not on the member count.
	fx := newFixture(
		[]*models.User{user("A"), user("B")},
		&models.Conversation{ID: "G2", Type: models.ConversationGroup, Members: []string{"A", "B"}},
	)
	connB := &fakeConn{}
	fx.reg.Register("B", connB)

	_, err := fx.engine.HandleMessage(context.Background(), Inbound{
		Sender: "A", Message: "hey", ConversationID: "G2",
	})

	req.NoError(err)
	req.Len(connB.events, 1)
}

func TestHandleMessage_UnknownSender(t *testing.T) {
	req := require.New(t)

	fx := newFixture(
		[]*models.User{user("A")},
		&models.Conversation{ID: "G", Type: models.ConversationGroup, Members: []string{"A"}},
	)

	_, err := fx.engine.HandleMessage(context.Background(), Inbound{
		Sender: "ghost", Message: "boo", ConversationID: "G",
	})

	var de *Error
	req.ErrorAs(err, &de)
	req.Equal(CodeUnknownSender, de.Code)
	req.Empty(fx.store.inserted)
}

func TestHandleMessage_UnknownConversation_NoPersistence(t *testing.T) {
	req := require.New(t)

	fx := newFixture([]*models.User{user("A")})

	_, err := fx.engine.HandleMessage(context.Background(), Inbound{
		Sender: "A", Message: "hi", ConversationID: "missing",
	})

	var de *Error
	req.ErrorAs(err, &de)
	req.Equal(CodeUnknownConversation, de.Code)
	// rejected before any persistence call
	req.Empty(fx.store.inserted)
}

func TestHandleMessage_NotAMember(t *testing.T) {
	req := require.New(t)

	fx := newFixture(
		[]*models.User{user("A"), user("B"), user("X")},
		&models.Conversation{ID: "G", Type: models.ConversationGroup, Members: []string{"A", "B"}},
	)
	connA := &fakeConn{}
	fx.reg.Register("A", connA)

	_, err := fx.engine.HandleMessage(context.Background(), Inbound{
		Sender: "X", Message: "let me in", ConversationID: "G",
	})

	var de *Error
	req.ErrorAs(err, &de)
	req.Equal(CodeNotAMember, de.Code)
	req.Empty(fx.store.inserted)
	// no fan-out to actual members
	req.Empty(connA.events)
}

func TestHandleMessage_EmptyContent(t *testing.T) {
	req := require.New(t)

	fx := newFixture(
		[]*models.User{user("A")},
		&models.Conversation{ID: "G", Type: models.ConversationGroup, Members: []string{"A"}},
	)

	_, err := fx.engine.HandleMessage(context.Background(), Inbound{
		Sender: "A", ConversationID: "G",
	})

	var de *Error
	req.ErrorAs(err, &de)
	req.Equal(CodeEmptyContent, de.Code)
	req.Empty(fx.store.inserted)
}

func TestHandleMessage_PersistenceFailure_NoFanout(t *testing.T) {
	req := require.New(t)

	fx := newFixture(
		[]*models.User{user("A"), user("B")},
		&models.Conversation{ID: "P", Type: models.ConversationPrivate, Members: []string{"A", "B"}},
	)
	fx.store.fail = errors.New("disk full")
	connA, connB := &fakeConn{}, &fakeConn{}
	fx.reg.Register("A", connA)
	fx.reg.Register("B", connB)

	_, err := fx.engine.HandleMessage(context.Background(), Inbound{
		Sender: "A", Message: "hi", ConversationID: "P",
	})

	// fail closed: a distinct not-persisted error, and nobody gets a push
	var de *Error
	req.ErrorAs(err, &de)
	req.Equal(CodeNotPersisted, de.Code)
	req.ErrorContains(de, "disk full")
	req.Empty(connA.events)
	req.Empty(connB.events)
}

func TestHandleMessage_OfflineSender_StillDelivers(t *testing.T) {
	req := require.New(t)

	fx := newFixture(
		[]*models.User{user("A"), user("B")},
		&models.Conversation{ID: "P", Type: models.ConversationPrivate, Members: []string{"A", "B"}},
	)
	connB := &fakeConn{}
	fx.reg.Register("B", connB)

	// Sender has no live connection; the echo is simply skipped.
	env, err := fx.engine.HandleMessage(context.Background(), Inbound{
		Sender: "A", Message: "hi", ConversationID: "P",
	})

	req.NoError(err)
	req.NotNil(env)
	req.Len(connB.events, 1)
}

func TestRecipients_PrivatePicksCounterpart(t *testing.T) {
	req := require.New(t)
	conv := &models.Conversation{Type: models.ConversationPrivate, Members: []string{"A", "B"}}
	req.Equal([]string{"B"}, recipients(conv, "A"))
	req.Equal([]string{"A"}, recipients(conv, "B"))
}

func TestRecipients_BroadcastExcludesSender(t *testing.T) {
	req := require.New(t)
	conv := &models.Conversation{Type: models.ConversationBroadcast, Members: []string{"A", "B", "C"}}
	req.ElementsMatch([]string{"B", "C"}, recipients(conv, "A"))
}
