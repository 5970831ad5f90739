package models

// Request bodies of the JSON API.

type CreateGameRequest struct {
	Force bool `json:"force"`
}

type JoinGameRequest struct {
	GameTicker string `json:"gameTicker"`
	Force      bool   `json:"force"`
}

type LobbyRequest struct {
	GameID int64 `json:"gameId"`
}

type SetNameRequest struct {
	Name string `json:"name"`
}
