package models

import (
	"fmt"

	"github.com/goccy/go-json"
)

const (
	ViewStonk    = "Stonk"
	ViewTerminal = "Terminal"
	ViewClose    = "Close"
)

// ViewRequest asks the client layout to open or close a view.
type ViewRequest interface {
	ViewType() string
	viewRequest()
}

type StonkViewRequest struct {
	Ticker string `json:"ticker"`
	Seed   string `json:"seed"`
}

type TerminalViewRequest struct{}

type CloseViewRequest struct{}

func (StonkViewRequest) ViewType() string    { return ViewStonk }
func (TerminalViewRequest) ViewType() string { return ViewTerminal }
func (CloseViewRequest) ViewType() string    { return ViewClose }

func (StonkViewRequest) viewRequest()    {}
func (TerminalViewRequest) viewRequest() {}
func (CloseViewRequest) viewRequest()    {}

func (r StonkViewRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ViewType string `json:"viewType"`
		Ticker   string `json:"ticker"`
		Seed     string `json:"seed"`
	}{ViewStonk, r.Ticker, r.Seed})
}

func (TerminalViewRequest) MarshalJSON() ([]byte, error) {
	return []byte(`{"viewType":"Terminal"}`), nil
}

func (CloseViewRequest) MarshalJSON() ([]byte, error) {
	return []byte(`{"viewType":"Close"}`), nil
}

func DecodeViewRequest(data []byte) (ViewRequest, error) {
	var w struct {
		ViewType string `json:"viewType"`
		Ticker   string `json:"ticker"`
		Seed     string `json:"seed"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	switch w.ViewType {
	case ViewStonk:
		return StonkViewRequest{Ticker: w.Ticker, Seed: w.Seed}, nil
	case ViewTerminal:
		return TerminalViewRequest{}, nil
	case ViewClose:
		return CloseViewRequest{}, nil
	default:
		return nil, fmt.Errorf("unknown view type %q", w.ViewType)
	}
}
