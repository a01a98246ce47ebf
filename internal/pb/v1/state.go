package v1

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/h0tp-ftw/alarm-audio-detector/internal/domain/alarm"
)

// Keys of the detector state struct.
const (
	KeyActive      = "active"
	KeyProfile     = "profile"
	KeyDetectionID = "detection_id"
	KeyCycleCount  = "cycle_count"
	KeyTimestamp   = "timestamp"
)

// Metadata keys identifying the calling host and user.
const (
	MetadataActorHostname = "x-actor-hostname"
	MetadataActorUsername = "x-actor-username"
)

// ErrMalformedState is returned when a struct does not describe a detector state.
var ErrMalformedState = errors.New("malformed detector state")

// StateToStruct converts a domain state into its wire form.
// A nil state yields an inactive state without timestamp.
func StateToStruct(state *alarm.State) *structpb.Struct {
	if state == nil {
		state = new(alarm.State)
	}

	fields := map[string]*structpb.Value{
		KeyActive:      structpb.NewBoolValue(state.Active),
		KeyProfile:     structpb.NewStringValue(state.Profile),
		KeyDetectionID: structpb.NewStringValue(state.DetectionID),
		KeyCycleCount:  structpb.NewNumberValue(float64(state.CycleCount)),
		KeyTimestamp:   structpb.NewStringValue(""),
	}

	if !state.Timestamp.IsZero() {
		fields[KeyTimestamp] = structpb.NewStringValue(state.Timestamp.UTC().Format(time.RFC3339Nano))
	}

	return &structpb.Struct{Fields: fields}
}

// StateFromStruct parses the wire form back into a domain state.
// Missing keys keep their zero values; keys of the wrong kind are rejected.
func StateFromStruct(s *structpb.Struct) (*alarm.State, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil struct", ErrMalformedState)
	}

	state := new(alarm.State)

	for key, value := range s.GetFields() {
		switch key {
		case KeyActive:
			v, ok := value.GetKind().(*structpb.Value_BoolValue)
			if !ok {
				return nil, fmt.Errorf("%w: %s must be a bool", ErrMalformedState, key)
			}

			state.Active = v.BoolValue
		case KeyProfile, KeyDetectionID, KeyTimestamp:
			v, ok := value.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return nil, fmt.Errorf("%w: %s must be a string", ErrMalformedState, key)
			}

			if err := setStringField(state, key, v.StringValue); err != nil {
				return nil, err
			}
		case KeyCycleCount:
			v, ok := value.GetKind().(*structpb.Value_NumberValue)
			if !ok || v.NumberValue < 0 {
				return nil, fmt.Errorf("%w: %s must be a non-negative number", ErrMalformedState, key)
			}

			state.CycleCount = int(v.NumberValue)
		}
	}

	return state, nil
}

func setStringField(state *alarm.State, key, value string) error {
	switch key {
	case KeyProfile:
		state.Profile = value
	case KeyDetectionID:
		state.DetectionID = value
	case KeyTimestamp:
		if value == "" {
			return nil
		}

		timestamp, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrMalformedState, key, err)
		}

		state.Timestamp = timestamp
	}

	return nil
}
