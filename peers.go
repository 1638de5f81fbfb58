package telerelay

import (
	"context"
	"fmt"
	"sync"

	"github.com/gotd/td/tg"
)

// peerCache remembers the access hashes needed to address channels and users.
// It is filled from update entities, from the dialog list at startup and from
// on-demand lookups.
type peerCache struct {
	mu       sync.RWMutex
	channels map[int64]int64 // channel id -> access hash
	users    map[int64]int64 // user id -> access hash
}

func newPeerCache() *peerCache {
	return &peerCache{
		channels: make(map[int64]int64),
		users:    make(map[int64]int64),
	}
}

func (p *peerCache) learn(e tg.Entities) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, ch := range e.Channels {
		if !ch.Min {
			p.channels[id] = ch.AccessHash
		}
	}
	for id, u := range e.Users {
		if !u.Min {
			p.users[id] = u.AccessHash
		}
	}
}

func (p *peerCache) learnChats(chats []tg.ChatClass, users []tg.UserClass) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, c := range chats {
		switch ch := c.(type) {
		case *tg.Channel:
			if !ch.Min {
				p.channels[ch.ID] = ch.AccessHash
			}
		case *tg.ChannelForbidden:
			p.channels[ch.ID] = ch.AccessHash
		}
	}
	for _, u := range users {
		if user, ok := u.(*tg.User); ok && !user.Min {
			p.users[user.ID] = user.AccessHash
		}
	}
}

func (p *peerCache) channelHash(id int64) (int64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := p.channels[id]
	return h, ok
}

func (p *peerCache) userHash(id int64) (int64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := p.users[id]
	return h, ok
}

// warm loads the first page of dialogs so destinations the account has
// joined are addressable before any update mentions them.
func (p *peerCache) warm(ctx context.Context, api *tg.Client) error {
	res, err := api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      100,
	})
	if err != nil {
		return err
	}

	switch d := res.(type) {
	case *tg.MessagesDialogs:
		p.learnChats(d.Chats, d.Users)
	case *tg.MessagesDialogsSlice:
		p.learnChats(d.Chats, d.Users)
	}
	return nil
}

// inputPeer converts a received peer into an input peer using known hashes.
func (p *peerCache) inputPeer(peer tg.PeerClass) tg.InputPeerClass {
	switch v := peer.(type) {
	case *tg.PeerChannel:
		h, _ := p.channelHash(v.ChannelID)
		return &tg.InputPeerChannel{ChannelID: v.ChannelID, AccessHash: h}
	case *tg.PeerChat:
		return &tg.InputPeerChat{ChatID: v.ChatID}
	case *tg.PeerUser:
		h, _ := p.userHash(v.UserID)
		return &tg.InputPeerUser{UserID: v.UserID, AccessHash: h}
	}
	return nil
}

// resolve turns a destination into an input peer, looking channels up when
// their access hash is not cached yet.
func (p *peerCache) resolve(ctx context.Context, api *tg.Client, to Peer) (tg.InputPeerClass, error) {
	kind, id := peerChannel, to.ID
	if !to.Channel {
		kind, id = splitMarkedID(to.ID)
	}

	switch kind {
	case peerChat:
		return &tg.InputPeerChat{ChatID: id}, nil
	case peerUser:
		h, ok := p.userHash(id)
		if !ok {
			return nil, fmt.Errorf("%w: user %d", ErrUnknownPeer, id)
		}
		return &tg.InputPeerUser{UserID: id, AccessHash: h}, nil
	}

	h, ok := p.channelHash(id)
	if !ok {
		var err error
		if h, err = p.lookupChannel(ctx, api, id); err != nil {
			return nil, err
		}
	}
	return &tg.InputPeerChannel{ChannelID: id, AccessHash: h}, nil
}

func (p *peerCache) lookupChannel(ctx context.Context, api *tg.Client, id int64) (int64, error) {
	res, err := api.ChannelsGetChannels(ctx, []tg.InputChannelClass{
		&tg.InputChannel{ChannelID: id},
	})
	if err != nil {
		return 0, fmt.Errorf("%w: channel %d: %w", ErrUnknownPeer, id, err)
	}

	var chats []tg.ChatClass
	switch r := res.(type) {
	case *tg.MessagesChats:
		chats = r.Chats
	case *tg.MessagesChatsSlice:
		chats = r.Chats
	}
	p.learnChats(chats, nil)

	h, ok := p.channelHash(id)
	if !ok {
		return 0, fmt.Errorf("%w: channel %d", ErrUnknownPeer, id)
	}
	return h, nil
}
