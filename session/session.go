package session

import (
	"context"
	"sync"

	"castplay.app/castplay/castprotocol"
)

// CastDevice is the receiver a session is bound to.
type CastDevice struct {
	FriendlyName string
	ModelName    string
	Addr         string
	DeviceID     string
}

// Session is an active connection to a receiver.
type Session interface {
	ID() string
	IsConnected() bool
	Device() CastDevice
	LoadMedia(ctx context.Context, media castprotocol.MediaInfo, opts castprotocol.LoadOptions) error
}

type castSession struct {
	device CastDevice

	mu        sync.Mutex
	id        string
	client    Client
	suspended bool
}

func (s *castSession) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *castSession) Device() CastDevice {
	return s.device
}

func (s *castSession) IsConnected() bool {
	s.mu.Lock()
	c, suspended := s.client, s.suspended
	s.mu.Unlock()
	return c != nil && !suspended && c.IsConnected()
}

func (s *castSession) LoadMedia(ctx context.Context, media castprotocol.MediaInfo, opts castprotocol.LoadOptions) error {
	c := s.getClient()
	if c == nil {
		return castprotocol.ErrNotConnected
	}
	return c.Load(ctx, media, opts)
}

func (s *castSession) getClient() Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

func (s *castSession) isSuspended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suspended
}
