package tallymut

import (
	"bytes"
	"encoding/csv"
	"io"
	"io/ioutil"

	"github.com/carbocation/pfx"

	lollipop "github.com/gordonkoehn/LolliPop"
)

// Load reads a delimited tally file. The delimiter is auto-detected, so both
// tab-separated tallies and comma-separated exports work.
func Load(path string) (*RawTable, error) {
	bts, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return Read(bytes.NewReader(bts), lollipop.DetermineDelimiter(bytes.NewReader(bts)))
}

// Read parses a delimited tally table from r.
func Read(r io.Reader, delimiter rune) (*RawTable, error) {
	cr := csv.NewReader(r)
	cr.Comma = delimiter

	out := &RawTable{}
	for i := 0; ; i++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, pfx.Err(err)
		}

		if i == 0 {
			out.Columns = record
			continue
		}
		out.Rows = append(out.Rows, record)
	}

	if len(out.Columns) == 0 {
		return nil, lollipop.Dataf("tally table has no header row")
	}

	return out, nil
}
