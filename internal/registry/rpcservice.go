package registry

import (
	"context"

	"github.com/dando385/vm-integrity-monitor/internal/monitor"
)

// Service adapts a Registry to Go's net/rpc calling convention: every
// exported method takes (args, *reply) and returns error, the "XML-RPC-
// style control surface" spec.md's Registry facade was always meant to
// expose over the wire.
type Service struct {
	reg *Registry
}

// NewService wraps reg for net/rpc registration.
func NewService(reg *Registry) *Service {
	return &Service{reg: reg}
}

// GuestArgs names the guest a Start/Stop/ForceStop/Detach/Status call
// targets.
type GuestArgs struct {
	GuestName string
}

// Start begins managing the named guest.
func (s *Service) Start(args GuestArgs, _ *struct{}) error {
	return s.reg.Start(context.Background(), args.GuestName)
}

// Stop destroys the named guest's monitored session.
func (s *Service) Stop(args GuestArgs, _ *struct{}) error {
	return s.reg.Stop(context.Background(), args.GuestName)
}

// ForceStop destroys the named guest unconditionally.
func (s *Service) ForceStop(args GuestArgs, _ *struct{}) error {
	return s.reg.ForceStop(context.Background(), args.GuestName)
}

// Detach interrupts the named guest's Watcher without destroying the guest.
func (s *Service) Detach(args GuestArgs, _ *struct{}) error {
	return s.reg.Detach(args.GuestName)
}

// Status reports the named guest's current status.
func (s *Service) Status(args GuestArgs, reply *monitor.Status) error {
	st, err := s.reg.Status(args.GuestName)
	if err != nil {
		return err
	}
	*reply = st
	return nil
}

// Fleet reports every managed guest's current status, keyed by guest name.
func (s *Service) Fleet(_ struct{}, reply *map[string]monitor.Status) error {
	statuses, err := s.reg.Statuses(context.Background())
	if err != nil {
		return err
	}
	*reply = statuses
	return nil
}

// ConnectArgs names the client and domain IP a Connect/Disconnect call
// targets.
type ConnectArgs struct {
	ClientIP string
	DomainIP string
}

// Connect registers a client against the Monitor managing DomainIP.
func (s *Service) Connect(args ConnectArgs, reply *bool) error {
	ok, err := s.reg.Connect(context.Background(), args.ClientIP, args.DomainIP)
	*reply = ok
	return err
}

// Disconnect unregisters a client from the Monitor managing DomainIP.
func (s *Service) Disconnect(args ConnectArgs, reply *bool) error {
	ok, err := s.reg.Disconnect(args.ClientIP, args.DomainIP)
	*reply = ok
	return err
}
