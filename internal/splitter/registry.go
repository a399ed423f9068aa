// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package splitter

import (
	"context"
	"fmt"

	"github.com/czbiohub/imagingdb/internal/ingesterr"
)

// New dispatches on the ingest config's frames_format string to construct
// the matching Splitter variant. lif requires a VendorAdapter; pass nil for
// every other format.
func New(ctx context.Context, format string, src Source, opts Options, adapter VendorAdapter) (Splitter, error) {
	switch format {
	case "ome_tiff":
		return NewOmeTiff(ctx, src, opts)
	case "tif_folder":
		return NewTifFolder(ctx, src, opts)
	case "tif_id":
		return NewTifID(ctx, src, opts)
	case "lif":
		return NewLif(ctx, src, opts, adapter)
	default:
		return nil, fmt.Errorf("%w: unknown frames_format %q", ingesterr.ErrParse, format)
	}
}
