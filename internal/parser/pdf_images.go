package parser

import (
	"fmt"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/dgallion1/pdfrag/internal/doctree"
)

// Images smaller than this on either side are icons or rules, not figures.
const minImageSide = 50

// extractImages lists the image XObjects a page references directly. Images
// are numbered by their position among the page's image XObjects, so
// skipped icons still consume a number. Objects the library cannot read are
// skipped.
func extractImages(page pdflib.Page, n int) (images []doctree.ImageData) {
	defer func() { recover() }()

	xobjs := page.Resources().Key("XObject")
	if xobjs.Kind() != pdflib.Dict {
		return nil
	}

	index := 0
	for _, key := range xobjs.Keys() {
		func() {
			defer func() { recover() }()

			obj := xobjs.Key(key)
			if obj.Key("Subtype").Name() != "Image" {
				return
			}
			index++
			w, h := int(obj.Key("Width").Int64()), int(obj.Key("Height").Int64())
			if w < minImageSide || h < minImageSide {
				return
			}
			images = append(images, doctree.ImageData{
				Filename: fmt.Sprintf("page%d_img%d.%s", n, index, imageExt(obj.Key("Filter"))),
				Page:     n,
				Width:    w,
				Height:   h,
			})
		}()
	}
	return images
}

// imageExt maps an image stream's final filter to a file extension.
func imageExt(filter pdflib.Value) string {
	if filter.Kind() == pdflib.Array && filter.Len() > 0 {
		filter = filter.Index(filter.Len() - 1)
	}
	switch filter.Name() {
	case "DCTDecode":
		return "jpeg"
	case "JPXDecode":
		return "jp2"
	case "JBIG2Decode":
		return "jb2"
	default:
		return "png"
	}
}
