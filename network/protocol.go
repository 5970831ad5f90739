package network

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/wfunc/boomberg/models"
)

const (
	KindData = "data"
	KindPing = "ping"
)

var pingPayload = []byte("ping")

// Frame is one server-push item: an event line naming the kind and a data line.
type Frame struct {
	Kind string
	Data []byte
}

func PingFrame() Frame {
	return Frame{Kind: KindPing, Data: pingPayload}
}

func DataFrame(ev models.UserEvent) (Frame, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Kind: KindData, Data: data}, nil
}

// Encode renders the frame as
//
//	event: <kind>
//	data: <payload>
//	<blank line>
func (f Frame) Encode() []byte {
	var b bytes.Buffer
	b.Grow(len(f.Kind) + len(f.Data) + 16)
	b.WriteString("event: ")
	b.WriteString(f.Kind)
	b.WriteByte('\n')
	for _, line := range bytes.Split(f.Data, []byte{'\n'}) {
		b.WriteString("data: ")
		b.Write(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.Bytes()
}

// ParseFrames reads an event stream and calls fn for every complete frame.
// Comment lines (":") and unknown fields are skipped. It returns fn's error,
// the reader's error, or nil at EOF.
func ParseFrames(r io.Reader, fn func(Frame) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	var (
		kind string
		data [][]byte
	)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if kind == "" && data == nil {
				continue
			}
			if kind == "" {
				kind = "message"
			}
			if err := fn(Frame{Kind: kind, Data: bytes.Join(data, []byte{'\n'})}); err != nil {
				return err
			}
			kind, data = "", nil
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			kind = value
		case "data":
			data = append(data, []byte(value))
		}
	}
	return scanner.Err()
}
