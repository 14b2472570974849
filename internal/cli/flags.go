package cli

import (
	"io"
	"time"

	"github.com/jonboulle/clockwork"
)

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	JSON     bool   `long:"json" description:"Output in JSON format"`
	LogLevel string `long:"log-level" description:"Log level for diagnostics on stderr" default:"warn"`
	Version  bool   `long:"version" description:"Show version and exit"`
}

// FetchCommand runs one catalog fetch and prints its statistics.
type FetchCommand struct {
	Start        string        `long:"start" description:"First day of the range (YYYY-MM-DD)" required:"true"`
	End          string        `long:"end" description:"Last day of the range (YYYY-MM-DD, default today)"`
	MinMagnitude float64       `long:"min-magnitude" description:"Minimum magnitude" default:"4"`
	Global       bool          `long:"global" description:"Query worldwide instead of the area of interest"`
	FeedURL      string        `long:"feed-url" description:"Catalog query endpoint" default:"https://earthquake.usgs.gov/fdsnws/event/1/query"`
	Timeout      time.Duration `long:"timeout" description:"Catalog request timeout" default:"30s"`
	Archive      string        `long:"archive" description:"Also record the fetch in this SQLite archive"`

	globals *GlobalFlags
	out     io.Writer
	clock   clockwork.Clock
}

// BufferCommand buffers the linear-feature dataset and writes the zones as GeoJSON.
type BufferCommand struct {
	Rivers   string `long:"rivers" description:"Linear-feature dataset (GeoJSON)" default:"data/nepal_rivers.geojson"`
	Distance string `long:"distance" description:"Buffer distance in meters" required:"true"`

	globals *GlobalFlags
	out     io.Writer
}

// ClassifyCommand prints the severity class of each magnitude.
type ClassifyCommand struct {
	Args struct {
		Magnitudes []string `positional-arg-name:"MAG" required:"1"`
	} `positional-args:"yes"`

	globals *GlobalFlags
	out     io.Writer
}

// HistoryCommand lists archived fetches and severity counts.
type HistoryCommand struct {
	Archive string `long:"archive" description:"SQLite archive path" required:"true"`
	Limit   int    `long:"limit" description:"Maximum fetches listed" default:"10"`

	globals *GlobalFlags
	out     io.Writer
}
