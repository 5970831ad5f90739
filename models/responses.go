package models

// GameResponse is the JSON body of every game endpoint. Exactly one of the
// variants is populated; Result turns it into a GameResult.
type GameResponse struct {
	Code          string `json:"code,omitempty"`
	Desc          string `json:"desc,omitempty"`
	ExistingGames []Game `json:"existingGames,omitempty"`
	Error         string `json:"error,omitempty"`
}

// GameResult is the sum of the game endpoint outcomes.
type GameResult interface {
	gameResult()
}

type GameCreated struct {
	Code string
	Desc string
}

type GameConflict struct {
	ExistingGames []Game
}

type GameFailed struct {
	Error string
}

// GameAccepted is an empty success body.
type GameAccepted struct{}

func (GameCreated) gameResult()  {}
func (GameConflict) gameResult() {}
func (GameFailed) gameResult()   {}
func (GameAccepted) gameResult() {}

func (r GameResponse) Result() GameResult {
	switch {
	case r.Error != "":
		return GameFailed{Error: r.Error}
	case len(r.ExistingGames) > 0:
		return GameConflict{ExistingGames: r.ExistingGames}
	case r.Code != "":
		return GameCreated{Code: r.Code, Desc: r.Desc}
	default:
		return GameAccepted{}
	}
}

func Created(code, desc string) GameResponse { return GameResponse{Code: code, Desc: desc} }
func Conflict(games []Game) GameResponse    { return GameResponse{ExistingGames: games} }
func Failed(msg string) GameResponse         { return GameResponse{Error: msg} }

// NameResponse is returned by the set-name endpoint.
type NameResponse struct {
	NewName string `json:"newName,omitempty"`
	Error   string `json:"error,omitempty"`
}

// MeResponse describes the caller's session.
type MeResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
