package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/sewahub/sewahub_be/internal/models"
)

func text(content string) SendInput {
	return SendInput{Content: content, Type: models.MessageText}
}

func TestSendAndMarkRead(t *testing.T) {
	dir, pipe, _, _, _ := newTestCore()
	ctx := context.Background()
	u1, u2 := uuid.New(), uuid.New()

	conv, err := dir.FindOrCreateDirect(ctx, u1, u2, nil)
	if err != nil {
		t.Fatal(err)
	}

	msg, err := pipe.Send(ctx, u1, conv.ID, text("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if msg.SenderID != u1 || msg.ReceiverID != u2 {
		t.Fatalf("routing = %s -> %s, want %s -> %s", msg.SenderID, msg.ReceiverID, u1, u2)
	}
	if msg.IsRead {
		t.Fatal("new message born read")
	}

	if n, _ := pipe.UnreadCount(ctx, conv.ID, u2); n != 1 {
		t.Fatalf("receiver unread = %d, want 1", n)
	}
	if n, _ := pipe.UnreadCount(ctx, conv.ID, u1); n != 0 {
		t.Fatalf("sender unread = %d, want 0", n)
	}

	n, err := pipe.MarkRead(ctx, conv.ID, u2)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("marked = %d, want 1", n)
	}
	if n, _ := pipe.UnreadCount(ctx, conv.ID, u2); n != 0 {
		t.Fatalf("unread after read = %d, want 0", n)
	}

	// idempotent
	n, err = pipe.MarkRead(ctx, conv.ID, u2)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("second mark = %d, want 0", n)
	}
}

func TestMarkReadLeavesOwnMessagesAlone(t *testing.T) {
	dir, pipe, _, _, _ := newTestCore()
	ctx := context.Background()
	u1, u2 := uuid.New(), uuid.New()

	conv, _ := dir.FindOrCreateDirect(ctx, u1, u2, nil)
	if _, err := pipe.Send(ctx, u1, conv.ID, text("one")); err != nil {
		t.Fatal(err)
	}
	if _, err := pipe.Send(ctx, u2, conv.ID, text("two")); err != nil {
		t.Fatal(err)
	}

	// u1 reading marks only the message addressed to u1
	if n, _ := pipe.MarkRead(ctx, conv.ID, u1); n != 1 {
		t.Fatalf("marked = %d, want 1", n)
	}
	if n, _ := pipe.UnreadCount(ctx, conv.ID, u2); n != 1 {
		t.Fatalf("u2 unread = %d, want 1", n)
	}
}

func TestSendValidation(t *testing.T) {
	dir, pipe, _, _, _ := newTestCore()
	ctx := context.Background()
	u1, u2 := uuid.New(), uuid.New()
	conv, _ := dir.FindOrCreateDirect(ctx, u1, u2, nil)

	for _, tc := range []struct {
		name  string
		in    SendInput
		field string
	}{
		{"empty text", SendInput{Type: models.MessageText}, "content"},
		{"whitespace text", SendInput{Type: models.MessageText, Content: "   "}, "content"},
		{"missing type", SendInput{Content: "hi"}, "messageType"},
		{"unknown type", SendInput{Type: "video", Content: "hi"}, "messageType"},
		{"image without url", SendInput{Type: models.MessageImage}, "fileUrl"},
		{"file without url", SendInput{Type: models.MessageFile}, "fileUrl"},
		{"oversized text", SendInput{Type: models.MessageText, Content: strings.Repeat("x", maxContentLen+1)}, "content"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := pipe.Send(ctx, u1, conv.ID, tc.in)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
			var fieldErrs FieldErrors
			if !errors.As(err, &fieldErrs) {
				t.Fatalf("err %T does not carry field errors", err)
			}
			if len(fieldErrs[tc.field]) == 0 {
				t.Fatalf("no error recorded for field %q: %v", tc.field, fieldErrs)
			}
		})
	}
}

func TestSendFileMessage(t *testing.T) {
	dir, pipe, _, _, _ := newTestCore()
	ctx := context.Background()
	u1, u2 := uuid.New(), uuid.New()
	conv, _ := dir.FindOrCreateDirect(ctx, u1, u2, nil)

	msg, err := pipe.Send(ctx, u1, conv.ID, SendInput{
		Type:     models.MessageImage,
		FileURL:  "https://cdn.sewahub.test/u/abc.jpg",
		FileName: "abc.jpg",
		FileSize: 51200,
	})
	if err != nil {
		t.Fatal(err)
	}
	if msg.FileURL == "" || msg.FileName != "abc.jpg" || msg.FileSize != 51200 {
		t.Fatalf("file fields not carried: %+v", msg)
	}
}

func TestSendRejectsOutsiders(t *testing.T) {
	dir, pipe, _, _, _ := newTestCore()
	ctx := context.Background()

	conv, _ := dir.FindOrCreateDirect(ctx, uuid.New(), uuid.New(), nil)

	_, err := pipe.Send(ctx, uuid.New(), conv.ID, text("let me in"))
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestSendRejectsDeactivatedConversation(t *testing.T) {
	dir, pipe, _, _, _ := newTestCore()
	ctx := context.Background()
	u1, u2 := uuid.New(), uuid.New()

	conv, _ := dir.FindOrCreateDirect(ctx, u1, u2, nil)
	if err := dir.Deactivate(ctx, conv.ID, u1); err != nil {
		t.Fatal(err)
	}

	if _, err := pipe.Send(ctx, u1, conv.ID, text("anyone there")); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestSendReply(t *testing.T) {
	dir, pipe, _, _, _ := newTestCore()
	ctx := context.Background()
	u1, u2 := uuid.New(), uuid.New()
	conv, _ := dir.FindOrCreateDirect(ctx, u1, u2, nil)

	parent, err := pipe.Send(ctx, u1, conv.ID, text("original"))
	if err != nil {
		t.Fatal(err)
	}

	reply, err := pipe.Send(ctx, u2, conv.ID, SendInput{
		Type:    models.MessageText,
		Content: "got it",
		ReplyTo: &parent.ID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if reply.ReplyToID == nil || *reply.ReplyToID != parent.ID {
		t.Fatal("reply does not point at its parent")
	}

	// reply target in another conversation
	otherConv, _ := dir.FindOrCreateDirect(ctx, u1, uuid.New(), nil)
	stray, err := pipe.Send(ctx, u1, otherConv.ID, text("elsewhere"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = pipe.Send(ctx, u1, conv.ID, SendInput{
		Type:    models.MessageText,
		Content: "cross",
		ReplyTo: &stray.ID,
	})
	if !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("cross-conversation reply: err = %v, want ErrInvalidOperation", err)
	}

	// reply target that does not exist
	ghost := uuid.New()
	_, err = pipe.Send(ctx, u1, conv.ID, SendInput{
		Type:    models.MessageText,
		Content: "haunted",
		ReplyTo: &ghost,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing reply target: err = %v, want ErrNotFound", err)
	}
}

func TestSendUpdatesConversationPreview(t *testing.T) {
	dir, pipe, convs, _, _ := newTestCore()
	ctx := context.Background()
	u1, u2 := uuid.New(), uuid.New()
	conv, _ := dir.FindOrCreateDirect(ctx, u1, u2, nil)

	msg, err := pipe.Send(ctx, u1, conv.ID, text("latest"))
	if err != nil {
		t.Fatal(err)
	}

	stored, err := convs.FindByID(ctx, conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.LastMessageID == nil || *stored.LastMessageID != msg.ID {
		t.Fatal("last message pointer not updated")
	}
	if stored.LastMessageText != "latest" {
		t.Fatalf("preview = %q, want latest", stored.LastMessageText)
	}
}

func TestEdit(t *testing.T) {
	dir, pipe, convs, _, _ := newTestCore()
	ctx := context.Background()
	u1, u2 := uuid.New(), uuid.New()
	conv, _ := dir.FindOrCreateDirect(ctx, u1, u2, nil)

	msg, err := pipe.Send(ctx, u1, conv.ID, text("helo"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := pipe.Edit(ctx, msg.ID, u2, "hijack"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-sender edit: err = %v, want ErrUnauthorized", err)
	}
	if _, err := pipe.Edit(ctx, msg.ID, u1, "  "); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty edit: err = %v, want ErrValidation", err)
	}
	if _, err := pipe.Edit(ctx, uuid.New(), u1, "hello"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing message: err = %v, want ErrNotFound", err)
	}

	edited, err := pipe.Edit(ctx, msg.ID, u1, "hello")
	if err != nil {
		t.Fatal(err)
	}
	if edited.Content != "hello" || !edited.IsEdited || edited.EditedAt == nil {
		t.Fatalf("edit not applied: %+v", edited)
	}

	// the newest message's edit flows into the conversation preview
	stored, _ := convs.FindByID(ctx, conv.ID)
	if stored.LastMessageText != "hello" {
		t.Fatalf("preview = %q, want hello", stored.LastMessageText)
	}
}

func TestEditNonTextRejected(t *testing.T) {
	dir, pipe, _, _, _ := newTestCore()
	ctx := context.Background()
	u1, u2 := uuid.New(), uuid.New()
	conv, _ := dir.FindOrCreateDirect(ctx, u1, u2, nil)

	msg, err := pipe.Send(ctx, u1, conv.ID, SendInput{
		Type:    models.MessageImage,
		FileURL: "https://cdn.sewahub.test/u/p.png",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pipe.Edit(ctx, msg.ID, u1, "caption"); !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("err = %v, want ErrInvalidOperation", err)
	}
}

func TestDelete(t *testing.T) {
	dir, pipe, _, _, _ := newTestCore()
	ctx := context.Background()
	u1, u2 := uuid.New(), uuid.New()
	conv, _ := dir.FindOrCreateDirect(ctx, u1, u2, nil)

	msg, err := pipe.Send(ctx, u1, conv.ID, text("oops"))
	if err != nil {
		t.Fatal(err)
	}

	if err := pipe.Delete(ctx, msg.ID, u2); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-sender delete: err = %v, want ErrUnauthorized", err)
	}
	if err := pipe.Delete(ctx, msg.ID, u1); err != nil {
		t.Fatal(err)
	}
	if err := pipe.Delete(ctx, msg.ID, u1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: err = %v, want ErrNotFound", err)
	}

	msgs, total, err := pipe.ListMessages(ctx, conv.ID, u1, 1, 50)
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 || len(msgs) != 0 {
		t.Fatalf("deleted message still listed: total = %d", total)
	}
}

func TestListMessagesPaging(t *testing.T) {
	dir, pipe, _, _, _ := newTestCore()
	ctx := context.Background()
	u1, u2 := uuid.New(), uuid.New()
	conv, _ := dir.FindOrCreateDirect(ctx, u1, u2, nil)

	for i := 0; i < 5; i++ {
		sender := u1
		if i%2 == 1 {
			sender = u2
		}
		if _, err := pipe.Send(ctx, sender, conv.ID, text(string(rune('a'+i)))); err != nil {
			t.Fatal(err)
		}
	}

	// page 1 holds the newest two, in chronological order
	page1, total, err := pipe.ListMessages(ctx, conv.ID, u1, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 {
		t.Fatalf("total = %d, want 5", total)
	}
	if len(page1) != 2 || page1[0].Content != "d" || page1[1].Content != "e" {
		t.Fatalf("page 1 = %v", contents(page1))
	}

	page2, _, err := pipe.ListMessages(ctx, conv.ID, u1, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page2) != 2 || page2[0].Content != "b" || page2[1].Content != "c" {
		t.Fatalf("page 2 = %v", contents(page2))
	}

	if _, _, err := pipe.ListMessages(ctx, conv.ID, uuid.New(), 1, 50); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("outsider listing: err = %v, want ErrUnauthorized", err)
	}
}

func contents(msgs []models.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func TestUnreadCountsAcrossConversations(t *testing.T) {
	dir, pipe, _, _, _ := newTestCore()
	ctx := context.Background()
	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()

	convA, _ := dir.FindOrCreateDirect(ctx, u1, u2, nil)
	convB, _ := dir.FindOrCreateDirect(ctx, u1, u3, nil)

	for i := 0; i < 3; i++ {
		if _, err := pipe.Send(ctx, u2, convA.ID, text("a")); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 2; i++ {
		if _, err := pipe.Send(ctx, u3, convB.ID, text("b")); err != nil {
			t.Fatal(err)
		}
	}

	if n, _ := pipe.UnreadCountGlobal(ctx, u1); n != 5 {
		t.Fatalf("global unread = %d, want 5", n)
	}

	if _, err := pipe.MarkRead(ctx, convA.ID, u1); err != nil {
		t.Fatal(err)
	}
	if n, _ := pipe.UnreadCountGlobal(ctx, u1); n != 2 {
		t.Fatalf("global unread after reading A = %d, want 2", n)
	}
	if n, _ := pipe.UnreadCount(ctx, convB.ID, u1); n != 2 {
		t.Fatalf("B unread = %d, want 2", n)
	}
}

func TestStats(t *testing.T) {
	dir, pipe, _, _, _ := newTestCore()
	ctx := context.Background()
	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()

	convA, _ := dir.FindOrCreateDirect(ctx, u1, u2, nil)
	if _, err := dir.FindOrCreateDirect(ctx, u1, u3, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := pipe.Send(ctx, u2, convA.ID, text("hi")); err != nil {
		t.Fatal(err)
	}

	stats, err := pipe.Stats(ctx, u1)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalConversations != 2 {
		t.Fatalf("conversations = %d, want 2", stats.TotalConversations)
	}
	if stats.UnreadMessages != 1 {
		t.Fatalf("unread = %d, want 1", stats.UnreadMessages)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	_, pipe, _, _, _ := newTestCore()

	_, err := pipe.Search(context.Background(), uuid.New(), "", 20)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestSearchScopedToUser(t *testing.T) {
	dir, pipe, _, _, _ := newTestCore()
	ctx := context.Background()
	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()

	convA, _ := dir.FindOrCreateDirect(ctx, u1, u2, nil)
	convB, _ := dir.FindOrCreateDirect(ctx, u2, u3, nil)

	if _, err := pipe.Send(ctx, u1, convA.ID, text("deposit for the camera")); err != nil {
		t.Fatal(err)
	}
	if _, err := pipe.Send(ctx, u2, convB.ID, text("deposit received")); err != nil {
		t.Fatal(err)
	}

	hits, err := pipe.Search(ctx, u1, "deposit", 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %d, want 1", len(hits))
	}
	if hits[0].Content != "deposit for the camera" {
		t.Fatalf("hit = %q", hits[0].Content)
	}
}
