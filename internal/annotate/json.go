package annotate

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONRenderer writes the figure itself as JSON. It only supports
// FormatJSON.
type JSONRenderer struct{}

func (JSONRenderer) Render(fig *Figure, format Format, w io.Writer) error {
	if format != FormatJSON {
		return fmt.Errorf("json renderer cannot produce %s", format)
	}
	return json.NewEncoder(w).Encode(fig)
}
