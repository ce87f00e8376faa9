package pdfdoc

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"paperindex/internal/domain"
)

// imageSource decodes embedded images with pdfcpu, one page at a time.
type imageSource struct {
	file *os.File
	ctx  *model.Context

	mu    sync.Mutex
	pages map[int][]decoded
}

type decoded struct {
	name          string
	ext           string
	width, height int
	bytes         []byte
}

func openImageSource(path string) (src *imageSource, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("image reader: malformed pdf: %v", r)
		}
		if err != nil {
			f.Close()
			src = nil
		}
	}()

	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	return &imageSource{file: f, ctx: ctx, pages: make(map[int][]decoded)}, nil
}

func (s *imageSource) image(pageNr int, ref domain.ImageRef) (domain.ImageData, error) {
	imgs, err := s.page(pageNr)
	if err != nil {
		return domain.ImageData{}, err
	}
	img, ok := pick(imgs, ref)
	if !ok {
		return domain.ImageData{}, fmt.Errorf("image %s not decodable on page %d", ref.Name, pageNr)
	}
	if len(img.bytes) == 0 {
		return domain.ImageData{}, fmt.Errorf("image %s: empty stream", ref.Name)
	}
	return domain.ImageData{Bytes: img.bytes, Ext: img.ext}, nil
}

func (s *imageSource) page(pageNr int) (imgs []decoded, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if imgs, ok := s.pages[pageNr]; ok {
		return imgs, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d images: %v", pageNr, r)
		}
	}()

	byObj, err := pdfcpu.ExtractPageImages(s.ctx, pageNr, false)
	if err != nil {
		return nil, fmt.Errorf("page %d images: %w", pageNr, err)
	}
	objNrs := make([]int, 0, len(byObj))
	for nr := range byObj {
		objNrs = append(objNrs, nr)
	}
	sort.Ints(objNrs)
	for _, nr := range objNrs {
		img := byObj[nr]
		d := decoded{name: img.Name, ext: img.FileType, width: img.Width, height: img.Height}
		if img.Reader != nil {
			if d.bytes, err = io.ReadAll(img); err != nil {
				return nil, fmt.Errorf("page %d image %s: %w", pageNr, img.Name, err)
			}
		}
		imgs = append(imgs, d)
	}
	s.pages[pageNr] = imgs
	return imgs, nil
}

// pick prefers a resource-name match and falls back to the only image with
// the same dimensions.
func pick(imgs []decoded, ref domain.ImageRef) (decoded, bool) {
	for _, img := range imgs {
		if img.name == ref.Name {
			return img, true
		}
	}
	var (
		match decoded
		n     int
	)
	for _, img := range imgs {
		if img.width == ref.Width && img.height == ref.Height {
			match = img
			n++
		}
	}
	return match, n == 1
}

func (s *imageSource) close() error {
	return s.file.Close()
}
