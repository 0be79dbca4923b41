package detect

import "github.com/rickgao/arb-scanner/internal/model"

// WindowEvent is the Detector's output: exactly one of Open or Close
// is set. Keeping them in one struct lets the output channel stay a
// single type while downstream consumers switch on which field is
// non-nil.
type WindowEvent struct {
	Open  *model.WindowOpenEvent
	Close *model.WindowCloseEvent
}
