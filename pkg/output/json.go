package output

import (
	"io"

	"github.com/waftester/scantriage/pkg/aggregate"
	"github.com/waftester/scantriage/pkg/jsonutil"
)

// WriteJSON writes rep as an indented JSON document. Map members are
// sorted, so equal reports produce equal bytes.
func WriteJSON(w io.Writer, rep *aggregate.Report) error {
	enc := jsonutil.NewEncoder(w)
	enc.SetIndent("  ")
	return enc.Encode(rep)
}
