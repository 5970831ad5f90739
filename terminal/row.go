package terminal

// RowKind tags how a row is rendered.
type RowKind int

const (
	RowPlain RowKind = iota
	// RowHTML is trusted markup produced by the client itself, never user input.
	RowHTML
	RowWarn
	RowError
	RowLoading
)

func (k RowKind) String() string {
	switch k {
	case RowPlain:
		return "plain"
	case RowHTML:
		return "html"
	case RowWarn:
		return "warn"
	case RowError:
		return "error"
	case RowLoading:
		return "loading"
	default:
		return "unknown"
	}
}

type Row struct {
	Kind RowKind
	Text string
}

func Plain(text string) Row   { return Row{Kind: RowPlain, Text: text} }
func HTML(text string) Row    { return Row{Kind: RowHTML, Text: text} }
func Warn(text string) Row    { return Row{Kind: RowWarn, Text: text} }
func Error(text string) Row   { return Row{Kind: RowError, Text: text} }
func Loading(text string) Row { return Row{Kind: RowLoading, Text: text} }

func (r Row) blank() bool {
	return r.Kind == RowPlain && r.Text == ""
}
