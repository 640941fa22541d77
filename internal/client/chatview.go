package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mwangaza12/meditime/internal/session"
	"github.com/mwangaza12/meditime/pkg/logging"
)

var ErrNotMounted = errors.New("chat view is not mounted")

// ReplyAPI is the part of the API a chat view needs.
type ReplyAPI interface {
	ListReplies(ctx context.Context, complaintID string) ([]Reply, error)
	CreateReply(ctx context.Context, complaintID, message string) (Reply, error)
}

// ChatView is one complaint conversation on screen: the fetched history,
// the live replies and at most one live channel.
type ChatView struct {
	api      ReplyAPI
	dialer   Dialer
	wsBase   string
	session  session.Session
	base     *logging.Logger
	logger   *logging.Logger
	onScroll func()

	lifecycle sync.Mutex // serializes Mount and Unmount

	mu          sync.Mutex
	complaintID string
	channel     *LiveChannel
	thread      *Thread
	draft       string
}

func NewChatView(api ReplyAPI, dialer Dialer, wsBase string, sess session.Session, logger *logging.Logger, onScroll func()) *ChatView {
	return &ChatView{
		api:      api,
		dialer:   dialer,
		wsBase:   wsBase,
		session:  sess,
		base:     logger,
		logger:   logger.Component("chat_view"),
		onScroll: onScroll,
		thread:   &Thread{},
	}
}

// Mount shows complaintID. Any previous connection is closed before the
// new one is dialed. An empty id only unmounts. History and the live
// channel are independent: a failed history fetch still dials, keeps the
// view usable for sending and is returned; a failed live connection is
// only logged.
func (v *ChatView) Mount(ctx context.Context, complaintID string) error {
	v.lifecycle.Lock()
	defer v.lifecycle.Unlock()

	v.unmount()
	if complaintID == "" {
		return nil
	}

	thread := &Thread{}
	history, historyErr := v.api.ListReplies(ctx, complaintID)
	if historyErr != nil {
		v.logger.Warn().Err(historyErr).Str("complaint_id", complaintID).Msg("failed to load replies")
		historyErr = fmt.Errorf("load replies: %w", historyErr)
	} else {
		thread.SetHistorical(history)
	}
	ch := NewLiveChannel(v.wsBase, complaintID, v.session, v.dialer, v.base)

	v.mu.Lock()
	v.complaintID = complaintID
	v.thread = thread
	v.channel = ch
	v.mu.Unlock()

	err := ch.Connect(ctx, func(r Reply) {
		if r.ComplaintID != complaintID {
			return
		}
		if thread.AddLive(r) && v.onScroll != nil {
			v.onScroll()
		}
	})
	if err != nil {
		v.logger.Warn().Err(err).Str("complaint_id", complaintID).Msg("live updates unavailable")
	}
	return historyErr
}

// Unmount closes the live channel synchronously.
func (v *ChatView) Unmount() {
	v.lifecycle.Lock()
	defer v.lifecycle.Unlock()
	v.unmount()
}

func (v *ChatView) unmount() {
	v.mu.Lock()
	ch := v.channel
	v.channel = nil
	v.complaintID = ""
	v.thread = &Thread{}
	v.draft = ""
	v.mu.Unlock()

	if ch != nil {
		if err := ch.Close(); err != nil {
			v.logger.Debug().Err(err).Msg("closing live channel")
		}
	}
}

// Send persists message, then appends the stored reply and broadcasts it.
// On failure the message is kept as the draft and nothing is appended.
func (v *ChatView) Send(ctx context.Context, message string) error {
	v.mu.Lock()
	id, ch, thread := v.complaintID, v.channel, v.thread
	v.mu.Unlock()
	if id == "" {
		return ErrNotMounted
	}

	reply, err := v.api.CreateReply(ctx, id, message)
	if err != nil {
		v.logger.Warn().Err(err).Str("complaint_id", id).Msg("failed to send reply")
		v.setDraft(message)
		return err
	}

	thread.AddLive(reply)
	v.setDraft("")

	if ch != nil {
		if err := ch.Emit(reply); err != nil {
			v.logger.Warn().Err(err).Str("complaint_id", id).Msg("failed to broadcast reply")
		}
	}
	return nil
}

func (v *ChatView) setDraft(s string) {
	v.mu.Lock()
	v.draft = s
	v.mu.Unlock()
}

// Draft is the unsent input text.
func (v *ChatView) Draft() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.draft
}

// Replies is the merged thread of the mounted complaint.
func (v *ChatView) Replies() []Reply {
	v.mu.Lock()
	thread := v.thread
	v.mu.Unlock()
	return thread.Replies()
}

// Author attributes r relative to the signed-in viewer.
func (v *ChatView) Author(r Reply) Author {
	return Attribute(r, v.session.ActorID)
}

func (v *ChatView) ChannelState() ChannelState {
	v.mu.Lock()
	ch := v.channel
	v.mu.Unlock()
	if ch == nil {
		return ChannelDisconnected
	}
	return ch.State()
}

func (v *ChatView) ComplaintID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.complaintID
}
