package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// MatchmakingRequest тело POST /matchmaking
type MatchmakingRequest struct {
	Action   string     `json:"action"`
	PlayerID string     `json:"playerId"`
	RoomName string     `json:"roomName,omitempty"`
	Players  PlayerList `json:"players,omitempty"`
}

// PlayerList принимает как массив идентификаторов, так и строку "a,b,c".
type PlayerList []string

func (p *PlayerList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = nil
		return nil
	}

	if data[0] == '"' {
		var joined string
		if err := json.Unmarshal(data, &joined); err != nil {
			return err
		}
		*p = splitPlayers(joined)
		return nil
	}

	if data[0] == '[' {
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			return err
		}
		*p = ids
		return nil
	}

	return errors.New("players must be a string or an array of strings")
}

func splitPlayers(joined string) []string {
	var ids []string
	for _, id := range strings.Split(joined, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

type MatchmakingResponse struct {
	Status string `json:"status"`
	Room   string `json:"room,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	CacheConnected bool      `json:"cacheConnected"`
	StoreConnected bool      `json:"storeConnected"`
}

type PingResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
