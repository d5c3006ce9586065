//go:build tinygo || !cgo

package gshadeaux

import (
	"errors"

	"github.com/soypat/gshade"
)

func ui(bg *gshade.Background, cfg PreviewConfig) error {
	return errors.New("require cgo for preview window")
}
