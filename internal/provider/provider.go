// Package provider defines the upstream flight-data integration contract:
// a normalized status DTO every provider must map into, a typed not-found
// absence, and provider errors carrying HTTP-style status codes (429 is
// semantically meaningful for the stale-cache fallback).
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mlenko/flightpath/internal/flight"
)

// ErrNotFound signals the provider has no record of the requested flight.
// Callers treat this as data absence, never as a crash.
var ErrNotFound = errors.New("flight not found")

// Error is a provider failure carrying an optional HTTP-style status code.
type Error struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: %s (status %d)", e.Provider, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
}

// IsRateLimited reports whether an error is an upstream rate-limit
// rejection (HTTP 429 equivalent).
func IsRateLimited(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.StatusCode == 429
}

// FlightStatus is the normalized DTO each upstream integration must
// produce. All timestamps are UTC.
type FlightStatus struct {
	SchedDep *time.Time `json:"sched_dep,omitempty"`
	SchedArr *time.Time `json:"sched_arr,omitempty"`
	EstDep   *time.Time `json:"est_dep,omitempty"`
	EstArr   *time.Time `json:"est_arr,omitempty"`
	ActDep   *time.Time `json:"act_dep,omitempty"`
	ActArr   *time.Time `json:"act_arr,omitempty"`

	GateDep     string `json:"gate_dep,omitempty"`
	GateArr     string `json:"gate_arr,omitempty"`
	TerminalDep string `json:"terminal_dep,omitempty"`
	TerminalArr string `json:"terminal_arr,omitempty"`

	Status       string `json:"status,omitempty"`
	AircraftType string `json:"aircraft_type,omitempty"`
	OriginIATA   string `json:"origin_iata,omitempty"`
	DestIATA     string `json:"dest_iata,omitempty"`
	DelayReason  string `json:"delay_reason,omitempty"`
}

// Departed reports whether an actual departure time is present.
func (s *FlightStatus) Departed() bool {
	return s != nil && s.ActDep != nil
}

// Landed reports whether an actual arrival time is present.
func (s *FlightStatus) Landed() bool {
	return s != nil && s.ActArr != nil
}

// DepartureRef resolves the best-known departure time: actual, else
// estimated, else scheduled.
func (s *FlightStatus) DepartureRef() *time.Time {
	if s == nil {
		return nil
	}
	for _, t := range []*time.Time{s.ActDep, s.EstDep, s.SchedDep} {
		if t != nil {
			return t
		}
	}
	return nil
}

// ArrivalRef resolves the best-known arrival time: actual, else estimated,
// else scheduled.
func (s *FlightStatus) ArrivalRef() *time.Time {
	if s == nil {
		return nil
	}
	for _, t := range []*time.Time{s.ActArr, s.EstArr, s.SchedArr} {
		if t != nil {
			return t
		}
	}
	return nil
}

// Provider is a single upstream flight-data integration.
type Provider interface {
	// Name identifies the provider in logs and the call audit trail.
	Name() string

	// FetchStatus returns the normalized status for a flight query, or
	// ErrNotFound, or an *Error.
	FetchStatus(ctx context.Context, key flight.Key) (*FlightStatus, error)
}
