// Package protocol defines the JSON frames exchanged over the live
// websocket. Decoding is strict: unknown types and missing required fields
// are rejected with a typed DecodeError before they reach the session layer.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeError describes a rejected client frame.
type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

// Client frames.

// StartSession must be the first frame on a connection.
type StartSession struct {
	Type     string `json:"type"`
	Scenario string `json:"scenario"`
	UserName string `json:"user_name"`
	UserRole string `json:"user_role"`
}

// UserMessage carries one user utterance.
type UserMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// PlaybackComplete acknowledges that an agent's audio finished playing on
// the client.
type PlaybackComplete struct {
	Type    string `json:"type"`
	AgentID string `json:"agent_id"`
}

// DecodeClientMessage parses and validates one inbound frame, returning one
// of StartSession, UserMessage, or PlaybackComplete.
func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case "start_session":
		var msg StartSession
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid start_session frame", "")
		}
		if strings.TrimSpace(msg.Scenario) == "" {
			return nil, badRequest("start_session.scenario is required", "scenario")
		}
		if strings.TrimSpace(msg.UserName) == "" {
			return nil, badRequest("start_session.user_name is required", "user_name")
		}
		if strings.TrimSpace(msg.UserRole) == "" {
			return nil, badRequest("start_session.user_role is required", "user_role")
		}
		return msg, nil
	case "message":
		var msg UserMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid message frame", "")
		}
		if strings.TrimSpace(msg.Text) == "" {
			return nil, badRequest("message.text is required", "text")
		}
		return msg, nil
	case "audio_playback_complete":
		var msg PlaybackComplete
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid audio_playback_complete frame", "")
		}
		if strings.TrimSpace(msg.AgentID) == "" {
			return nil, badRequest("audio_playback_complete.agent_id is required", "agent_id")
		}
		return msg, nil
	default:
		return nil, badRequest("unsupported message type", "type")
	}
}

// Server frames.

// AgentInfo is the public shape of a roster entry.
type AgentInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Gender string `json:"gender"`
}

type SessionStarted struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id"`
	Agents    []AgentInfo `json:"agents"`
}

type UserTurn struct {
	Type string `json:"type"`
}

type AIThinking struct {
	Type string `json:"type"`
}

type AIResponseStart struct {
	Type    string `json:"type"`
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
	Gender  string `json:"gender"`
}

type AIResponseChunk struct {
	Type    string `json:"type"`
	AgentID string `json:"agent_id"`
	Text    string `json:"text"`
}

type AIResponseEnd struct {
	Type    string `json:"type"`
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
	Text    string `json:"text"`
}

type TTSFirstAudio struct {
	Type    string `json:"type"`
	AgentID string `json:"agent_id"`
}

type AIAudioChunk struct {
	Type     string `json:"type"`
	AgentID  string `json:"agent_id"`
	AudioB64 string `json:"audio_b64"`
}

type AIAudioEnd struct {
	Type    string `json:"type"`
	AgentID string `json:"agent_id"`
}

type ConversationEnded struct {
	Type string `json:"type"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
