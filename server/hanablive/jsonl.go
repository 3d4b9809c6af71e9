package hanablive

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

const maxLine = 16 << 20

// ReadJSONL reads a dump with one export per line. Blank lines are ignored;
// lines that do not decode are logged and skipped.
func ReadJSONL(r io.Reader, log logrus.FieldLogger) ([]*ExportGame, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLine)

	var out []*ExportGame
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		e, err := Parse(b)
		if err != nil {
			log.WithError(err).WithField("line", line).Warn("skipping export line")
			continue
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("read jsonl line %d: %w", line+1, err)
	}
	return out, nil
}
