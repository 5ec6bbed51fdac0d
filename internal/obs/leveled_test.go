package obs

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestLeveledLoggerWritesLevels(t *testing.T) {
	var buf bytes.Buffer
	l := LeveledLogger{Logger: zerolog.New(&buf).Level(zerolog.DebugLevel)}

	l.Errorf("request failed: %s", "card_declined")
	l.Debugf("ignored %d", 1)

	out := buf.String()
	require.Contains(t, out, `"level":"error"`)
	require.Contains(t, out, "request failed: card_declined")
	require.Contains(t, out, `"level":"debug"`)
}
