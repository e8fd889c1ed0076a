package event

import (
	"chat-relay/errors"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pion/webrtc/v4"
)

var validate = validator.New()

// Envelope is the wire frame: {"type": "...", "payload": {...}}.
type Envelope struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decode parses one inbound frame. Every failure wraps errors.ErrMalformedEvent
// so the caller can drop the frame and keep the connection alive.
func Decode(frame []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedEvent, err)
	}

	if env.Type.IsCallSignal() {
		return decodeSignal(env)
	}

	var in Inbound
	switch env.Type {
	case KindRegister:
		var e Register
		if err := decodePayload(env.Payload, &e); err != nil {
			return nil, err
		}
		in = e
	case KindTyping:
		var e Typing
		if err := decodePayload(env.Payload, &e); err != nil {
			return nil, err
		}
		in = e
	case KindSendMessage:
		var e SendMessage
		if err := decodePayload(env.Payload, &e); err != nil {
			return nil, err
		}
		in = e
	case KindMarkSeen:
		var e MarkSeen
		if err := decodePayload(env.Payload, &e); err != nil {
			return nil, err
		}
		in = e
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", errors.ErrMalformedEvent, env.Type)
	}
	return in, nil
}

func decodeSignal(env Envelope) (Inbound, error) {
	e := CallSignal{Type: env.Type}
	if err := decodePayload(env.Payload, &e); err != nil {
		return nil, err
	}
	if err := ValidateSignal(e.Type, e.Payload); err != nil {
		return nil, err
	}
	return e, nil
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing payload", errors.ErrMalformedEvent)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrMalformedEvent, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrMalformedEvent, err)
	}
	return nil
}

// ValidateSignal checks the shape of a call payload without interpreting it.
// Offers and answers must be session descriptions of the matching type,
// ICE payloads must be candidate inits. Reject and cancel accept anything.
func ValidateSignal(kind Kind, payload json.RawMessage) error {
	switch kind {
	case KindCallOffer, KindCallAnswer:
		var desc webrtc.SessionDescription
		if err := json.Unmarshal(payload, &desc); err != nil {
			return fmt.Errorf("%w: %s payload: %v", errors.ErrMalformedEvent, kind, err)
		}
		want := webrtc.SDPTypeOffer
		if kind == KindCallAnswer {
			want = webrtc.SDPTypeAnswer
		}
		if desc.Type != want {
			return fmt.Errorf("%w: %s carries a %s description", errors.ErrMalformedEvent, kind, desc.Type)
		}
		if desc.SDP == "" {
			return fmt.Errorf("%w: %s without sdp", errors.ErrMalformedEvent, kind)
		}
	case KindICECandidate:
		var candidate webrtc.ICECandidateInit
		if err := json.Unmarshal(payload, &candidate); err != nil {
			return fmt.Errorf("%w: %s payload: %v", errors.ErrMalformedEvent, kind, err)
		}
	case KindRejectCall, KindCancelCall:
	default:
		return fmt.Errorf("%w: %q is not a call event", errors.ErrMalformedEvent, kind)
	}
	return nil
}

// Encode renders an outbound event as a wire frame.
func Encode(out Outbound) ([]byte, error) {
	payload, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: out.Kind(), Payload: payload})
}
