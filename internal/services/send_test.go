package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"coachchat/internal/auth"
	"coachchat/internal/domain/message"
	"coachchat/internal/permissions"
	"coachchat/internal/store"
	"coachchat/internal/transport/rest"
	coachchat_errors "coachchat/pkg/errors"
	"coachchat/pkg/logger"
)

// echoBackend answers SendMessage with a canonical message derived from
// the request, the way the real backend does.
func echoBackend(api *fakeAPI) {
	api.sendMessage = func(conversationID string, req rest.SendMessageRequest) (rest.Message, error) {
		return rest.Message{
			ID:              "srv-" + req.ClientMessageID,
			ConversationID:  conversationID,
			SenderID:        "me",
			Content:         req.Content,
			MessageType:     req.MessageType,
			MediaURL:        req.MediaURL,
			MediaDuration:   req.MediaDuration,
			MediaWidth:      req.MediaWidth,
			MediaHeight:     req.MediaHeight,
			MeteringValues:  req.MeteringValues,
			ReplyToID:       req.ReplyToID,
			ClientMessageID: req.ClientMessageID,
			CreatedAt:       time.Now(),
		}, nil
	}
}

func newSendFixture(t *testing.T, tier permissions.Tier) (*SendService, *MutationService, *store.Store, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	echoBackend(api)
	st := store.New()
	st.SetActive("conv-1")
	session := testSession()
	log := logger.NewNop()
	mutations := NewMutationService(api, st, session, nil, log)
	sender := NewSendService(api, st, session, mutations, tier, log)
	return sender, mutations, st, api
}

func TestSendTextReconcilesSinglePlaceholder(t *testing.T) {
	sender, _, st, api := newSendFixture(t, permissions.TierBasic)

	if err := sender.Send(context.Background(), message.TypeText, "hello coach", SendOptions{}); err != nil {
		t.Fatal(err)
	}

	snapshot := st.Snapshot("conv-1")
	if len(snapshot) != 1 {
		t.Fatalf("got %d entries, want exactly 1", len(snapshot))
	}
	got := snapshot[0]
	if got.ID == "" {
		t.Error("placeholder never reconciled to a canonical ID")
	}
	if got.TempID == "" {
		t.Error("temp ID lost during reconcile")
	}
	if got.Status != message.StatusSent {
		t.Errorf("Status = %s, want sent", got.Status)
	}
	if got.Content != "hello coach" {
		t.Errorf("Content = %q", got.Content)
	}
	if calls := api.calls(&api.sendCalls); calls != 1 {
		t.Errorf("SendMessage called %d times, want 1", calls)
	}
	if remaining := sender.Permissions().MessagesRemaining; remaining != 49 {
		t.Errorf("MessagesRemaining = %d, want 49 after one send", remaining)
	}
}

func TestSendTextFailureMarksFailedNotRemoved(t *testing.T) {
	sender, _, st, api := newSendFixture(t, permissions.TierBasic)
	api.sendMessage = func(string, rest.SendMessageRequest) (rest.Message, error) {
		return rest.Message{}, errors.New("backend down")
	}

	if err := sender.Send(context.Background(), message.TypeText, "hello", SendOptions{}); err == nil {
		t.Fatal("expected send failure")
	}

	snapshot := st.Snapshot("conv-1")
	if len(snapshot) != 1 {
		t.Fatalf("got %d entries, want the failed placeholder to remain", len(snapshot))
	}
	if snapshot[0].Status != message.StatusFailed {
		t.Errorf("Status = %s, want failed", snapshot[0].Status)
	}
	if snapshot[0].ID != "" {
		t.Error("failed entry must not carry a canonical ID")
	}
	// The failed send does not consume quota.
	if remaining := sender.Permissions().MessagesRemaining; remaining != 50 {
		t.Errorf("MessagesRemaining = %d, want 50", remaining)
	}
}

func TestSendEmptyTextSilentNoOp(t *testing.T) {
	sender, _, st, api := newSendFixture(t, permissions.TierBasic)

	if err := sender.Send(context.Background(), message.TypeText, "   \n\t ", SendOptions{}); err != nil {
		t.Fatalf("empty text must be a silent no-op, got %v", err)
	}
	if got := len(st.Snapshot("conv-1")); got != 0 {
		t.Errorf("empty text produced %d entries", got)
	}
	if calls := api.calls(&api.sendCalls); calls != 0 {
		t.Errorf("empty text reached the network %d times", calls)
	}
}

func TestSendBlockedAtDailyLimit(t *testing.T) {
	sender, _, st, api := newSendFixture(t, permissions.TierFree)
	sender.SetSentToday(10)

	err := sender.Send(context.Background(), message.TypeText, "one more", SendOptions{})
	if !errors.Is(err, coachchat_errors.ErrLimitReached) {
		t.Fatalf("err = %v, want ErrLimitReached", err)
	}
	if got := len(st.Snapshot("conv-1")); got != 0 {
		t.Error("blocked send left a placeholder behind")
	}
	if calls := api.calls(&api.sendCalls); calls != 0 {
		t.Error("blocked send reached the network")
	}
}

func TestSendVoiceRequiresTier(t *testing.T) {
	sender, _, _, api := newSendFixture(t, permissions.TierFree)

	err := sender.Send(context.Background(), message.TypeVoice, "", SendOptions{
		Voice: &VoiceAttachment{Audio: strings.NewReader("pcm"), Filename: "v.m4a", Duration: 2.5},
	})
	if !errors.Is(err, coachchat_errors.ErrNotAllowed) {
		t.Fatalf("err = %v, want ErrNotAllowed", err)
	}
	if calls := api.calls(&api.uploadVoiceCalls); calls != 0 {
		t.Error("gated voice send still uploaded")
	}
}

func TestSendVoiceUploadFailureAbortsBeforePlaceholder(t *testing.T) {
	sender, _, st, api := newSendFixture(t, permissions.TierBasic)
	api.uploadVoice = func(string, float64) (rest.VoiceUpload, error) {
		return rest.VoiceUpload{}, errors.New("s3 unavailable")
	}

	err := sender.Send(context.Background(), message.TypeVoice, "", SendOptions{
		Voice: &VoiceAttachment{Audio: strings.NewReader("pcm"), Filename: "v.m4a", Duration: 2.5},
	})
	if !errors.Is(err, coachchat_errors.ErrUploadFailed) {
		t.Fatalf("err = %v, want ErrUploadFailed", err)
	}
	if got := len(st.Snapshot("conv-1")); got != 0 {
		t.Error("upload failure still inserted a placeholder")
	}
	if calls := api.calls(&api.sendCalls); calls != 0 {
		t.Error("upload failure still dispatched a send")
	}
}

func TestSendVoicePayloadCarriesUploadResult(t *testing.T) {
	sender, _, st, api := newSendFixture(t, permissions.TierPremium)
	api.uploadVoice = func(filename string, duration float64) (rest.VoiceUpload, error) {
		if filename != "rec.m4a" {
			t.Errorf("filename = %q", filename)
		}
		return rest.VoiceUpload{URL: "https://cdn/voice/rec.m4a", Duration: duration}, nil
	}

	metering := []float64{0.1, 0.8, 0.4}
	err := sender.Send(context.Background(), message.TypeVoice, "", SendOptions{
		Voice: &VoiceAttachment{Audio: strings.NewReader("pcm"), Filename: "rec.m4a", Duration: 3.2, Metering: metering},
	})
	if err != nil {
		t.Fatal(err)
	}

	snapshot := st.Snapshot("conv-1")
	if len(snapshot) != 1 {
		t.Fatalf("got %d entries", len(snapshot))
	}
	got := snapshot[0]
	if got.MediaURL != "https://cdn/voice/rec.m4a" {
		t.Errorf("MediaURL = %q", got.MediaURL)
	}
	if got.MediaDuration != 3.2 {
		t.Errorf("MediaDuration = %v", got.MediaDuration)
	}
	if len(got.MeteringValues) != 3 {
		t.Errorf("MeteringValues = %v, want the recorder samples", got.MeteringValues)
	}
}

func TestSendImageFallsBackToLocalDimensions(t *testing.T) {
	sender, _, st, api := newSendFixture(t, permissions.TierBasic)
	api.uploadImage = func(string, string) (rest.ImageUpload, error) {
		// Backend did not probe dimensions.
		return rest.ImageUpload{URL: "https://cdn/img/1.jpg"}, nil
	}

	err := sender.Send(context.Background(), message.TypeImage, "", SendOptions{
		Image: &ImageAttachment{Image: strings.NewReader("jpeg"), Filename: "1.jpg", ContentType: "image/jpeg", Width: 640, Height: 480},
	})
	if err != nil {
		t.Fatal(err)
	}

	got := st.Snapshot("conv-1")[0]
	if got.MediaWidth != 640 || got.MediaHeight != 480 {
		t.Errorf("dimensions = %dx%d, want 640x480", got.MediaWidth, got.MediaHeight)
	}
}

func TestSendAttachesAndClearsReplyTarget(t *testing.T) {
	sender, mutations, st, api := newSendFixture(t, permissions.TierBasic)
	var gotReplyTo string
	original := api.sendMessage
	api.sendMessage = func(conversationID string, req rest.SendMessageRequest) (rest.Message, error) {
		gotReplyTo = req.ReplyToID
		return original(conversationID, req)
	}

	mutations.SetReplyingTo(message.Message{ID: "srv-7", Content: "quoted"})
	if err := sender.Send(context.Background(), message.TypeText, "replying", SendOptions{}); err != nil {
		t.Fatal(err)
	}

	if gotReplyTo != "srv-7" {
		t.Errorf("ReplyToID = %q, want srv-7", gotReplyTo)
	}
	if got := st.Snapshot("conv-1")[0]; got.ReplyToID != "srv-7" {
		t.Errorf("placeholder ReplyToID = %q", got.ReplyToID)
	}
	if mutations.ReplyingTo() != nil {
		t.Error("reply target not cleared after a successful send")
	}
}

func TestRetryReusesTempID(t *testing.T) {
	sender, _, st, api := newSendFixture(t, permissions.TierBasic)
	api.sendMessage = func(string, rest.SendMessageRequest) (rest.Message, error) {
		return rest.Message{}, errors.New("backend down")
	}
	if err := sender.Send(context.Background(), message.TypeText, "flaky", SendOptions{}); err == nil {
		t.Fatal("expected first send to fail")
	}
	failed := st.Snapshot("conv-1")[0]

	echoBackend(api)
	if err := sender.Retry(context.Background(), failed.TempID); err != nil {
		t.Fatal(err)
	}

	snapshot := st.Snapshot("conv-1")
	if len(snapshot) != 1 {
		t.Fatalf("retry produced %d entries, want 1", len(snapshot))
	}
	got := snapshot[0]
	if got.TempID != failed.TempID {
		t.Error("retry minted a new temp ID")
	}
	if got.ID == "" || got.Status != message.StatusSent {
		t.Errorf("retry did not reconcile: id=%q status=%s", got.ID, got.Status)
	}
	if got.Content != "flaky" {
		t.Errorf("retry lost the original content: %q", got.Content)
	}
}

func TestRetryRejectsNonFailedEntries(t *testing.T) {
	sender, _, st, _ := newSendFixture(t, permissions.TierBasic)
	if err := sender.Send(context.Background(), message.TypeText, "fine", SendOptions{}); err != nil {
		t.Fatal(err)
	}
	sent := st.Snapshot("conv-1")[0]

	if err := sender.Retry(context.Background(), sent.TempID); !errors.Is(err, coachchat_errors.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := sender.Retry(context.Background(), "temp-unknown"); !errors.Is(err, coachchat_errors.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSendPreconditions(t *testing.T) {
	api := &fakeAPI{}
	st := store.New()
	log := logger.NewNop()
	sender := NewSendService(api, st, testSession(), nil, permissions.TierBasic, log)

	err := sender.Send(context.Background(), message.TypeText, "hi", SendOptions{})
	if !errors.Is(err, coachchat_errors.ErrNoConversation) {
		t.Errorf("no active conversation: err = %v", err)
	}

	st.SetActive("conv-1")
	anonymous := NewSendService(api, st, auth.NewSession("me", ""), nil, permissions.TierBasic, log)
	if err := anonymous.Send(context.Background(), message.TypeText, "hi", SendOptions{}); !errors.Is(err, coachchat_errors.ErrNoToken) {
		t.Errorf("missing token: err = %v", err)
	}
}
